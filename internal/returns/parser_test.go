package returns

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// pad94 space-pads a record prefix out to the fixed record length.
func pad94(t *testing.T, s string) string {
	t.Helper()
	require.LessOrEqual(t, len(s), 94)

	return s + strings.Repeat(" ", 94-len(s))
}

func returnFixture(t *testing.T) string {
	t.Helper()

	header := pad94(t, "101 231380104 121042882"+"260315"+"1201A094101STONECREST BANK        WELLS FARGO")

	entry1 := pad94(t, "626076401251")
	addenda1 := "799" + "R01" + "231380100000001" + strings.Repeat(" ", 58) + "099100011234567"
	require.Len(t, addenda1, 94)

	entry2 := pad94(t, "621091000019")
	addenda2 := "798" + "C01" + "231380100000002" +
		strings.Repeat(" ", 14) + // dead space up to the corrected-data field
		"121042882        99887766    " +
		strings.Repeat(" ", 15) + "099100011234568"
	require.Len(t, addenda2, 94)

	return strings.Join([]string{header, entry1, addenda1, entry2, addenda2}, "\n") + "\n"
}

func TestParseFile(t *testing.T) {
	params, err := ParseFile(strings.NewReader(returnFixture(t)))
	require.NoError(t, err)
	require.Len(t, params, 2)

	wantDate := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "R01", params[0].Code)
	assert.Equal(t, "231380100000001", params[0].OriginalTrace)
	assert.Equal(t, "099100011234567", params[0].TraceNumber)
	assert.Equal(t, wantDate, params[0].ReturnDate)
	assert.Empty(t, params[0].CorrectedData)

	assert.Equal(t, "C01", params[1].Code)
	assert.Equal(t, "231380100000002", params[1].OriginalTrace)
	assert.Equal(t, "121042882        99887766", params[1].CorrectedData)
}

func TestParseFileRejectsBadInput(t *testing.T) {
	// Addenda with no preceding entry record.
	orphan := "799" + "R01" + "231380100000001" + strings.Repeat(" ", 58) + "099100011234567"
	_, err := ParseFile(strings.NewReader(orphan + "\n"))
	require.ErrorContains(t, err, "without a preceding entry")

	// Truncated record.
	_, err = ParseFile(strings.NewReader("626076401251\n"))
	require.ErrorContains(t, err, "want 94")

	// Unsupported addenda type.
	bad := pad94(t, "626076401251") + "\n" +
		"705" + "R01" + "231380100000001" + strings.Repeat(" ", 58) + "099100011234567" + "\n"
	_, err = ParseFile(strings.NewReader(bad))
	require.ErrorContains(t, err, "unsupported addenda type")
}

func TestIngestFileSkipsBadRecords(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := NewMockRepository(ctrl)
	svc := NewService(repo, nil)

	// Two parseable addenda, one carrying a code Classify rejects.
	good := "799" + "R01" + "231380100000001" + strings.Repeat(" ", 58) + "099100011234567"
	bad := "799" + "X99" + "231380100000002" + strings.Repeat(" ", 58) + "099100011234568"

	text := strings.Join([]string{
		pad94(t, "101 231380104 121042882"+"260315"+"1201A094101"),
		pad94(t, "626076401251"),
		good,
		pad94(t, "626076401251"),
		bad,
	}, "\n") + "\n"

	repo.EXPECT().CreateRecord(gomock.Any(), gomock.Any()).Return(nil)

	records, err := svc.IngestFile(context.Background(), strings.NewReader(text))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "R01", records[0].Code)
}
