package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRules = `
brokerages:
  Redrex:
    name: Redrex
    flavor: stream
    pages: "1-end"
    strip_text: "."
    small_sanitize: true
    header:
      table_areas: ["400,800,580,750"]
      columns: ["450,500"]
      fix_header: true
    main:
      table_areas: ["10,530,580,400", "10,390,580,300"]
      columns: ["100,200", "150"]
      fix_header: true
    small:
      table_areas: []
  clear:
    name: Clear
    flavor: lattice
    header: {}
    main: {}
    small: {}
`

func TestParse(t *testing.T) {
	reg, err := Parse([]byte(validRules))
	require.NoError(t, err)

	assert.Equal(t, []string{"clear", "redrex"}, reg.IDs())

	cfg, err := reg.Get("REDREX")
	require.NoError(t, err)
	assert.Equal(t, "redrex", cfg.ID)
	assert.Equal(t, "Redrex", cfg.Name)
	assert.Equal(t, FlavorStream, cfg.Flavor)
	assert.Equal(t, PageSelector{{Start: 1, End: 0}}, cfg.Pages)
	assert.Equal(t, ".", cfg.StripText)
	assert.True(t, cfg.SmallSanitize)

	assert.Equal(t, []Area{{X1: 400, Y1: 800, X2: 580, Y2: 750}}, cfg.Header.Areas)
	assert.Equal(t, [][]float64{{450, 500}}, cfg.Header.Columns)
	assert.Len(t, cfg.Main.Areas, 2)
	assert.Equal(t, [][]float64{{100, 200}, {150}}, cfg.Main.Columns)
	assert.True(t, cfg.Main.FixHeader)
	assert.Empty(t, cfg.Small.Areas)
	assert.False(t, cfg.Small.FixHeader)

	clear, err := reg.Get("clear")
	require.NoError(t, err)
	assert.Equal(t, FlavorLattice, clear.Flavor)
	assert.Equal(t, PageSelector{{Start: 1, End: 1}}, clear.Pages, "pages default to the first page")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no brokerages", `brokerages: {}`},
		{"missing name", `
brokerages:
  x: {flavor: stream, header: {}, main: {}, small: {}}`},
		{"unknown flavor", `
brokerages:
  x: {name: X, flavor: grid, header: {}, main: {}, small: {}}`},
		{"missing region", `
brokerages:
  x: {name: X, flavor: stream, header: {}, main: {}}`},
		{"bad pages", `
brokerages:
  x: {name: X, flavor: stream, pages: "3-1", header: {}, main: {}, small: {}}`},
		{"inverted area", `
brokerages:
  x:
    name: X
    flavor: stream
    header: {table_areas: ["10,100,200,300"]}
    main: {}
    small: {}`},
		{"short area", `
brokerages:
  x:
    name: X
    flavor: stream
    header: {table_areas: ["10,100,200"]}
    main: {}
    small: {}`},
		{"columns per area mismatch", `
brokerages:
  x:
    name: X
    flavor: stream
    header: {table_areas: ["10,300,200,100"], columns: ["20", "30"]}
    main: {}
    small: {}`},
		{"descending columns", `
brokerages:
  x:
    name: X
    flavor: stream
    header: {table_areas: ["10,300,200,100"], columns: ["50,20"]}
    main: {}
    small: {}`},
		{"column outside area", `
brokerages:
  x:
    name: X
    flavor: stream
    header: {table_areas: ["10,300,200,100"], columns: ["250"]}
    main: {}
    small: {}`},
		{"duplicate after lowercasing", `
brokerages:
  abc: {name: A, flavor: stream, header: {}, main: {}, small: {}}
  ABC: {name: B, flavor: stream, header: {}, main: {}, small: {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("brokerages: ["))
		assert.Error(t, err)
	})
}

func TestRegistry_GetUnknown(t *testing.T) {
	reg, err := Parse([]byte(validRules))
	require.NoError(t, err)

	_, err = reg.Get("redre")
	require.ErrorIs(t, err, ErrUnknownBrokerage)
	assert.Contains(t, err.Error(), "did you mean redrex")

	_, err = reg.Get("redrexx")
	require.ErrorIs(t, err, ErrUnknownBrokerage)
	assert.Contains(t, err.Error(), "redrex")

	_, err = reg.Get("zzz")
	require.ErrorIs(t, err, ErrUnknownBrokerage)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	reg, err := Parse([]byte(validRules))
	require.NoError(t, err)

	cfg, err := reg.Get("redrex")
	require.NoError(t, err)
	cfg.Main.Areas[0].X1 = -1
	cfg.Main.Columns[0][0] = -1
	cfg.Pages[0].Start = 9

	again, err := reg.Get("redrex")
	require.NoError(t, err)
	assert.Equal(t, 10.0, again.Main.Areas[0].X1)
	assert.Equal(t, 100.0, again.Main.Columns[0][0])
	assert.Equal(t, 1, again.Pages[0].Start)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validRules), 0o600))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, reg.IDs(), 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_ShippedRules(t *testing.T) {
	reg, err := LoadFile(filepath.Join("..", "..", "..", "..", "configs", "rules", "notas.yaml"))
	require.NoError(t, err)

	cfg, err := reg.Get("redrex")
	require.NoError(t, err)
	assert.Equal(t, "Redrex", cfg.Name)
	assert.Equal(t, "\n", cfg.StripText)

	for _, id := range reg.IDs() {
		b, err := reg.Get(id)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(b.Name), id, "brokerage key and lowercased name diverge")
	}
}
