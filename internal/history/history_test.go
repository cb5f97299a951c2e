package history

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendInOrder(t *testing.T) {
	l := New()
	require.NoError(t, l.Append(Entry{Speaker: "Clerk", Text: "Next, please.", Sequence: 0}))
	require.NoError(t, l.Append(Entry{Speaker: "You", Text: "One ticket to Lyon.", Sequence: 1}))

	assert.Equal(t, 2, l.Len())
	assert.Equal(t, []string{"Next, please.", "One ticket to Lyon."}, l.Texts())
}

func TestLog_RejectsGapsAndDuplicates(t *testing.T) {
	l := New()
	require.NoError(t, l.Append(Entry{Text: "a", Sequence: 0}))

	assert.Error(t, l.Append(Entry{Text: "dup", Sequence: 0}))
	assert.Error(t, l.Append(Entry{Text: "gap", Sequence: 2}))
	assert.Equal(t, 1, l.Len())
}

func TestLog_EntriesIsACopy(t *testing.T) {
	l := New()
	require.NoError(t, l.Append(Entry{Text: "original", Sequence: 0}))

	entries := l.Entries()
	entries[0].Text = "mutated"
	assert.Equal(t, "original", l.Entries()[0].Text)
}

func TestDescribe(t *testing.T) {
	got := Describe([]Entry{
		{Speaker: "Clerk", Text: "Window or aisle?"},
		{Speaker: "You", Text: "Window."},
	})
	assert.Equal(t, "Clerk: Window or aisle?\nYou: Window.\n", got)
	assert.Empty(t, New().ContextDescription())
}

func TestLog_ConcurrentReaders(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = l.Entries()
				_ = l.ContextDescription()
			}
		}()
	}
	for i := 0; i < 50; i++ {
		require.NoError(t, l.Append(Entry{Text: "x", Sequence: i}))
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
}
