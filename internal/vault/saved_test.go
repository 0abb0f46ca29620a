package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSavedDirs_AddNormalizesAndDedupes(t *testing.T) {
	var d SavedDirs
	d = d.Add("/Transcripts/")
	d = d.Add(`Notes\YouTube`)
	require.Equal(t, SavedDirs{"Transcripts", "Notes/YouTube"}, d)

	// 规范化后重复：长度不变、顺序不变。
	d2 := d.Add("Transcripts///")
	assert.Len(t, d2, 2)
	assert.Equal(t, d, d2)

	d3 := d.Add("  Notes/YouTube  ")
	assert.Len(t, d3, 2)

	assert.True(t, d.Contains(" /Transcripts"))
	assert.False(t, d.Contains("Other"))
}

func TestSavedDirs_AddDoesNotAliasReceiver(t *testing.T) {
	base := make(SavedDirs, 1, 8)
	base[0] = "A"

	x := base.Add("B")
	y := base.Add("C")
	assert.Equal(t, SavedDirs{"A", "B"}, x)
	assert.Equal(t, SavedDirs{"A", "C"}, y)
	assert.Equal(t, SavedDirs{"A"}, base)
}

func TestSavedDirs_AddRoot(t *testing.T) {
	d := SavedDirs{}.Add("/").Add("")
	assert.Equal(t, SavedDirs{""}, d)
}

func TestSavedDirs_RemoveAt(t *testing.T) {
	d := SavedDirs{"A", "B", "C"}

	got, err := d.RemoveAt(1)
	require.NoError(t, err)
	assert.Equal(t, SavedDirs{"A", "C"}, got)
	assert.Equal(t, SavedDirs{"A", "B", "C"}, d, "接收者不应被修改")

	got, err = d.RemoveAt(0)
	require.NoError(t, err)
	assert.Equal(t, SavedDirs{"B", "C"}, got)

	got, err = d.RemoveAt(2)
	require.NoError(t, err)
	assert.Equal(t, SavedDirs{"A", "B"}, got)
}

func TestSavedDirs_RemoveAtOutOfRange(t *testing.T) {
	d := SavedDirs{"A", "B"}
	for _, idx := range []int{-1, 2, 100} {
		_, err := d.RemoveAt(idx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIndexOutOfRange), "idx=%d", idx)

		var oe *IndexOutOfRangeError
		require.True(t, errors.As(err, &oe))
		assert.Equal(t, idx, oe.Index)
		assert.Equal(t, 2, oe.Len)
	}

	_, err := SavedDirs(nil).RemoveAt(0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSavedDirs_At(t *testing.T) {
	d := SavedDirs{"A", "B"}
	p, err := d.At(1)
	require.NoError(t, err)
	assert.Equal(t, "B", p)

	_, err = d.At(2)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestNormalizeList(t *testing.T) {
	got := NormalizeList([]string{" Transcripts/", "Notes", "/Transcripts", `Notes\`, "Clips"})
	assert.Equal(t, SavedDirs{"Transcripts", "Notes", "Clips"}, got)
	assert.Nil(t, NormalizeList(nil))
}
