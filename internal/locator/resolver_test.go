package locator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockTarget is a scriptable page for resolver tests.
type mockTarget struct {
	mu       sync.Mutex
	waitErrs map[string]error // keyed by Expr; missing key means success
	texts    map[string]string
	textErr  error
	attempts []string
}

func newMockTarget() *mockTarget {
	return &mockTarget{
		waitErrs: make(map[string]error),
		texts:    make(map[string]string),
	}
}

func (m *mockTarget) WaitFor(ctx context.Context, loc Locator, cond Condition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, loc.Expr)
	if err, ok := m.waitErrs[loc.Expr]; ok {
		return err
	}
	return nil
}

func (m *mockTarget) Text(ctx context.Context, loc Locator) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.textErr != nil {
		return "", m.textErr
	}
	return m.texts[loc.Expr], nil
}

func (m *mockTarget) attemptLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.attempts))
	copy(out, m.attempts)
	return out
}

func testChain(entries ...Locator) Chain {
	return Chain{Name: "test", DefaultWait: 50 * time.Millisecond, Entries: entries}
}

func TestResolve_FirstEntryWins(t *testing.T) {
	target := newMockTarget()
	r := NewResolver(target, zap.NewNop())

	chain := testChain(
		Locator{Strategy: CSS, Expr: "#primary"},
		Locator{Strategy: XPath, Expr: "//fallback"},
	)

	got, err := r.Resolve(context.Background(), chain, Present)
	require.NoError(t, err)
	assert.Equal(t, "#primary", got.Expr)
	assert.Equal(t, []string{"#primary"}, target.attemptLog(), "later entries must not be consulted")
}

func TestResolve_FallsThroughInOrder(t *testing.T) {
	target := newMockTarget()
	target.waitErrs["#primary"] = errors.New("not visible")
	r := NewResolver(target, zap.NewNop())

	chain := testChain(
		Locator{Strategy: CSS, Expr: "#primary"},
		Locator{Strategy: XPath, Expr: "//fallback"},
	)

	got, err := r.Resolve(context.Background(), chain, Clickable)
	require.NoError(t, err)
	assert.Equal(t, "//fallback", got.Expr)
	assert.Equal(t, []string{"#primary", "//fallback"}, target.attemptLog())
}

func TestResolve_AllEntriesMiss(t *testing.T) {
	target := newMockTarget()
	target.waitErrs["#a"] = errors.New("missing")
	target.waitErrs["#b"] = errors.New("missing")
	r := NewResolver(target, zap.NewNop())

	chain := testChain(
		Locator{Strategy: CSS, Expr: "#a"},
		Locator{Strategy: CSS, Expr: "#b"},
	)

	_, err := r.Resolve(context.Background(), chain, Present)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestResolve_TextValidationFailureIsNonMatch(t *testing.T) {
	target := newMockTarget()
	target.texts["//span[1]"] = "Listed Broker"
	target.texts["//span[2]"] = "Unlisted Broker"
	r := NewResolver(target, zap.NewNop())

	chain := testChain(
		Locator{Strategy: XPath, Expr: "//span[1]", ExpectText: "Unlisted Broker"},
		Locator{Strategy: XPath, Expr: "//span[2]", ExpectText: "Unlisted Broker"},
	)

	got, err := r.Resolve(context.Background(), chain, Present)
	require.NoError(t, err)
	assert.Equal(t, "//span[2]", got.Expr)
}

func TestResolve_TextValidationSubstringMatch(t *testing.T) {
	target := newMockTarget()
	target.texts["#label"] = "  Unlisted Broker setup  "
	r := NewResolver(target, zap.NewNop())

	chain := testChain(Locator{Strategy: CSS, Expr: "#label", ExpectText: "Unlisted Broker"})

	_, err := r.Resolve(context.Background(), chain, Present)
	require.NoError(t, err)
}

func TestResolve_EmptyChain(t *testing.T) {
	r := NewResolver(newMockTarget(), zap.NewNop())
	_, err := r.Resolve(context.Background(), testChain(), Present)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrElementNotFound)
}

func TestResolve_CancelledContext(t *testing.T) {
	target := newMockTarget()
	r := NewResolver(target, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Resolve(ctx, testChain(Locator{Strategy: CSS, Expr: "#x"}), Present)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, target.attemptLog())
}

func TestChainWaitFor(t *testing.T) {
	chain := Chain{
		DefaultWait: time.Second,
		Entries: []Locator{
			{Expr: "#a"},
			{Expr: "#b", Wait: 5 * time.Second},
		},
	}
	assert.Equal(t, time.Second, chain.WaitFor(0))
	assert.Equal(t, 5*time.Second, chain.WaitFor(1))
}
