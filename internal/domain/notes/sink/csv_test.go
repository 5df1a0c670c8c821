package sink

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVWriter_Write(t *testing.T) {
	s := newStorage(t)
	tbl := mustTable(t,
		[]string{"ativo", "preco", "especificacao_do_titulo"},
		[][]string{
			{"PETR4", "30,5", "PETROBRAS PN; N2"},
			{"VALE3", "60,0", `ON "NM"`},
		},
	)

	path, err := NewCSVWriter(s).Write(context.Background(), "nota_001", tbl)
	require.NoError(t, err)
	assert.Equal(t, "nota_001.csv", filepath.Base(path))

	records := readCSV(t, path)
	assert.Equal(t, [][]string{
		{"ativo", "preco", "especificacao_do_titulo"},
		{"PETR4", "30,5", "PETROBRAS PN; N2"},
		{"VALE3", "60,0", `ON "NM"`},
	}, records)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "ativo;preco;especificacao_do_titulo\n")
}

func TestCSVWriter_Overwrites(t *testing.T) {
	s := newStorage(t)
	w := NewCSVWriter(s)

	_, err := w.Write(context.Background(), "nota", mustTable(t, []string{"a"}, [][]string{{"1"}, {"2"}}))
	require.NoError(t, err)
	path, err := w.Write(context.Background(), "nota", mustTable(t, []string{"b"}, [][]string{{"3"}}))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"b"}, {"3"}}, readCSV(t, path))
}

func TestCSVWriter_EmptyTableKeepsHeader(t *testing.T) {
	s := newStorage(t)

	path, err := NewCSVWriter(s).Write(context.Background(), "vazia", mustTable(t, []string{"a", "b"}, nil))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a", "b"}}, readCSV(t, path))
}

func TestCSVWriter_RemovesPartialFile(t *testing.T) {
	disk := &brokenDisk{LocalStorage: newStorage(t)}
	tbl := mustTable(t, []string{"ativo", "preco"}, [][]string{{"PETR4", "30,5"}, {"VALE3", "60,0"}})

	_, err := NewCSVWriter(disk).Write(context.Background(), "nota_001", tbl)

	require.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, []string{"nota_001.csv"}, disk.removed)
	assert.NoFileExists(t, disk.Path("nota_001.csv"))
}
