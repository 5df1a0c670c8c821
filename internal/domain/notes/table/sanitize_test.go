package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"accented", "Preço", "preco"},
		{"trailing space", "preco ", "preco"},
		{"upper accented", "PREÇO", "preco"},
		{"inner spaces", "Data de Inserção", "data_de_insercao"},
		{"punctuation", "Valor Operação / Ajuste", "valor_operacao__ajuste"},
		{"ordinal indicator", "Nº Nota", "no_nota"},
		{"tilde", "Pregão", "pregao"},
		{"digits kept", "Taxa 2", "taxa_2"},
		{"non-decomposable letters", "Straße", "strasse"},
		{"degree sign", "N° Nota", "ndeg_nota"},
		{"currency", "Valor R$ €", "valor_r_eur"},
		{"dots and parens", "C/V (D/C)", "cv_dc"},
		{"already clean", "insertion_date", "insertion_date"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeLabel(tt.label))
		})
	}
}

func TestSanitizeLabel_Idempotent(t *testing.T) {
	for _, label := range []string{"Preço Médio", " Nº ", "Ação!", "Dt. Liquidação", "ÆØÅ", "a  b"} {
		once := SanitizeLabel(label)
		assert.Equal(t, once, SanitizeLabel(once), label)
	}
}

func TestSanitizeColumns(t *testing.T) {
	in, _ := New([]string{"Ativo", "Preço", "preco "}, [][]string{{"PETR4", "30,5", "x"}})

	out := SanitizeColumns(in)

	assert.Equal(t, []string{"ativo", "preco", "preco"}, out.Columns)
	assert.Equal(t, in.Rows, out.Rows)
	assert.Equal(t, "Preço", in.Columns[1], "input labels must be left alone")
	assert.Equal(t, out.Columns, SanitizeColumns(out).Columns)
}

func TestTransliterate(t *testing.T) {
	assert.Equal(t, "Acucar e Cafe", Transliterate("Açúcar e Café"))
	assert.Equal(t, "o", Transliterate("º"))
	assert.Equal(t, "Cafe", Transliterate("Cafe\u0301"))
	assert.Equal(t, "AEOA", Transliterate("ÆØÅ"))
}
