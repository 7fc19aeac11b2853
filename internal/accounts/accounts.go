// File: internal/accounts/accounts.go
// Description: Account records and the flat-file credential source. The rest
// of the application consumes accounts through the Source interface; the CSV
// layout is an implementation detail of this package.
package accounts

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"
)

// Account identifies one target login. Records are constructed once per run
// and are immutable for the duration of a session.
type Account struct {
	// ID is the unique, stable account identifier. For this broker the
	// login identifier doubles as the ID.
	ID string
	// Identifier is the primary login name typed into the identifier field.
	Identifier string
	// Secret is the primary password. Never logged.
	Secret string
	// SecondFactorSeed is the raw optional second-factor value: either a
	// static code or a time-based seed. Classification happens at the
	// point of use, not at load time.
	SecondFactorSeed string
	// Active gates whether the orchestrator starts a session for this
	// account.
	Active bool
}

// Source supplies the ordered list of account records for a run.
type Source interface {
	Load() ([]Account, error)
}

// Expected CSV headers. The status column is optional; a missing column
// leaves every row active.
const (
	headerIdentifier = "Username"
	headerSecret     = "Password"
	headerSeed       = "PIN/TOTP Secret"
	headerStatus     = "Status"
)

// CSVSource reads account records from a header-addressed CSV file.
type CSVSource struct {
	path   string
	logger *zap.Logger
}

// NewCSVSource creates a source for the given path. A leading "~" is
// expanded to the user's home directory.
func NewCSVSource(path string, logger *zap.Logger) (*CSVSource, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding credentials path: %w", err)
	}
	return &CSVSource{path: expanded, logger: logger.Named("accounts")}, nil
}

// Load reads and validates the credential file. Rows missing an identifier
// or secret are skipped with a warning rather than failing the whole load.
func (s *CSVSource) Load() ([]Account, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials file %q: %w", s.path, err)
	}
	defer f.Close()
	return s.parse(f)
}

func (s *CSVSource) parse(r io.Reader) ([]Account, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading credentials header: %w", err)
	}
	if len(header) > 0 {
		// Files exported from spreadsheets often carry a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{headerIdentifier, headerSecret} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("credentials file is missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var out []Account
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading credentials row %d: %w", line, err)
		}

		id := field(row, headerIdentifier)
		secret := field(row, headerSecret)
		if id == "" || secret == "" {
			s.logger.Warn("Skipping credential row with missing identifier or secret",
				zap.Int("row", line))
			continue
		}

		active := true
		if _, ok := cols[headerStatus]; ok {
			active = field(row, headerStatus) == "1"
		}

		out = append(out, Account{
			ID:               id,
			Identifier:       id,
			Secret:           secret,
			SecondFactorSeed: field(row, headerSeed),
			Active:           active,
		})
	}
	return out, nil
}

// FilterTargets narrows accounts to the given IDs, preserving the input file
// order. An empty target list returns the accounts unchanged. Unknown target
// IDs are reported so a typo does not silently shrink the run.
func FilterTargets(all []Account, targets []string) ([]Account, []string) {
	if len(targets) == 0 {
		return all, nil
	}

	want := make(map[string]bool, len(targets))
	for _, t := range targets {
		want[t] = true
	}

	var out []Account
	for _, a := range all {
		if want[a.ID] {
			out = append(out, a)
			delete(want, a.ID)
		}
	}

	var missing []string
	for _, t := range targets {
		if want[t] {
			missing = append(missing, t)
		}
	}
	return out, missing
}
