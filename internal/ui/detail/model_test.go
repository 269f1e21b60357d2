package detail

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bugboard/internal/keys"
	"bugboard/internal/model"
	"bugboard/internal/source"
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testDetail() *source.ItemDetail {
	return &source.ItemDetail{
		Task: model.Task{
			ID:    "bugzilla-1234567",
			Title: "This is the issue summary",
		},
	}
}

func TestCommentCompose(t *testing.T) {
	m := New(nil, keys.DefaultKeyMap(), 80, 24)
	m.SetTask(testDetail())

	m, _ = m.Update(runeKey("c"))
	require.True(t, m.Composing())

	// Every keystroke lands in the input, shortcut characters included.
	for _, r := range "cannot reproduce?" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	require.True(t, m.Composing())

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(ActionMsg)
	require.True(t, ok)
	assert.Equal(t, "comment", msg.Action)
	assert.Equal(t, "bugzilla-1234567", msg.TaskID)
	assert.Equal(t, "cannot reproduce?", msg.Input)
	assert.False(t, m.Composing())
}

func TestCommentComposeCancel(t *testing.T) {
	m := New(nil, keys.DefaultKeyMap(), 80, 24)
	m.SetTask(testDetail())

	m, _ = m.Update(runeKey("c"))
	require.True(t, m.Composing())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Composing())
}

func TestEmptyCommentIsDiscarded(t *testing.T) {
	m := New(nil, keys.DefaultKeyMap(), 80, 24)
	m.SetTask(testDetail())

	m, _ = m.Update(runeKey("c"))
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, m.Composing())
}
