package csvutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/rats/internal/testutil"
)

type person struct {
	Name string
	Age  int
}

func parsePerson(row Row) (person, error) {
	age, err := row.Int("Age")
	if err != nil {
		return person{}, err
	}
	if row.Get("kind") == "robot" {
		return person{}, ErrSkip
	}
	return person{Name: row.Get("name"), Age: age}, nil
}

func TestProcessCSV(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("test.csv", "\ufeffName,Age,Kind\nAlice,30,human\n\"Bob, Jr.\",25,human\nR2,99,robot\nCharlie,,human\n")

	people, err := ProcessCSV(env.Path("test.csv"), parsePerson, ProcessorOptions{Required: []string{"name", "age"}})
	require.NoError(t, err)

	assert.Equal(t, []person{
		{Name: "Alice", Age: 30},
		{Name: "Bob, Jr.", Age: 25},
		{Name: "Charlie", Age: 0},
	}, people)
}

func TestProcessInvalidRecords(t *testing.T) {
	input := "name,age\nAlice,thirty\nBob,25\n"

	_, err := Process(strings.NewReader(input), parsePerson, ProcessorOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	people, err := Process(strings.NewReader(input), parsePerson, ProcessorOptions{SkipInvalid: true})
	require.NoError(t, err)
	assert.Equal(t, []person{{Name: "Bob", Age: 25}}, people)
}

func TestProcessMissingColumn(t *testing.T) {
	_, err := Process(strings.NewReader("name\nAlice\n"), parsePerson, ProcessorOptions{Required: []string{"Age"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Age"`)
}

func TestRowFloat(t *testing.T) {
	rows, err := Process(strings.NewReader("rating\n3.5\n\nx\n"), func(row Row) (float64, error) {
		return row.Float("Rating")
	}, ProcessorOptions{SkipInvalid: true})
	require.NoError(t, err)
	assert.Equal(t, []float64{3.5}, rows)
}

func TestProcessCSV_EmptyFile(t *testing.T) {
	env := testutil.NewTestEnv(t)
	env.WriteFileString("empty.csv", "")

	_, err := ProcessCSV(env.Path("empty.csv"), parsePerson, ProcessorOptions{})
	assert.Error(t, err)
}

func TestProcessCSV_FileNotFound(t *testing.T) {
	_, err := ProcessCSV("/nonexistent/file.csv", parsePerson, ProcessorOptions{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrSkip))
}
