package writer

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestJSONWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	err := NewJSONWriter[payload]().Write(payload{Name: "x", Count: 3}, &buf)
	require.NoError(t, err)

	var got payload
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, payload{Name: "x", Count: 3}, got)
}

func TestPrettyJSONWriter_Indents(t *testing.T) {
	var buf bytes.Buffer
	err := NewPrettyJSONWriter[payload]().Write(payload{Name: "x"}, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "\n  \"name\"")
}

func TestJSONWriter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	err := NewJSONWriter[payload]().WriteToFile(payload{Name: "f"}, path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got payload
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "f", got.Name)
}

func TestGzipWriter_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	err := NewGzipWriter[payload]().Write(payload{Name: "z", Count: 9}, &buf)
	require.NoError(t, err)

	gz, err := gzip.NewReader(&buf)
	require.NoError(t, err)
	defer gz.Close()

	var got payload
	require.NoError(t, json.NewDecoder(gz).Decode(&got))
	assert.Equal(t, payload{Name: "z", Count: 9}, got)
}

func TestGzipWriter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json.gz")
	err := NewGzipWriter[payload]().WriteToFile(payload{Name: "g"}, path)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	gz, err := gzip.NewReader(f)
	require.NoError(t, err)
	var got payload
	require.NoError(t, json.NewDecoder(gz).Decode(&got))
	assert.Equal(t, "g", got.Name)
}
