package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	records := []Record{
		{
			"description": "(bw)Is#1234567 - This is the issue summary .. https://one.com/show_bug.cgi?id=1234567",
			"project":     "Something",
			"priority":    "H",
			"tags":        []string{},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records))

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Something", decoded[0]["project"])
	assert.Equal(t, "H", decoded[0]["priority"])
}

func TestWriteEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, nil))
	assert.Equal(t, "[]\n", buf.String())
}
