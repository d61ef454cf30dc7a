package parser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmpulse/internal/model"
)

var testNow = time.Date(2024, 3, 12, 15, 4, 5, 0, time.UTC)

func sheetOf(t *testing.T, name string, rows [][]string) *Sheet {
	t.Helper()
	s, err := buildSheet(name, "Sheet1", textRows(rows), ReadOptions{})
	require.NoError(t, err)
	return s
}

func TestTransformCC_ForwardFillsTeam(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "cc.xlsx", [][]string{
		{"Team", "Name", "CC", "SC"},
		{"Alpha", "Jane Doe", "75%", "0.1"},
		{"", "John Roe", "0.8", ""},
		{"", "Alpha Total", "77%", "9%"},
		{"Beta", "Ann Lee", "90", "20"},
		{"", "Bob Ray", "", "10"},
	})

	res := TransformCC(sheet, TransformOptions{Now: testNow})

	assert.Equal(t, model.SourceCC, res.Source)
	assert.Equal(t, 4, res.Received)
	require.Len(t, res.Accepted, 3)
	require.Len(t, res.Rejected, 1)

	jane := res.Accepted[0]
	assert.Equal(t, "JANE DOE", jane.MentorName)
	assert.Equal(t, "Jane Doe", jane.DisplayName)
	assert.Equal(t, "Alpha", jane.TeamName)
	assert.InDelta(t, 75, *jane.Values.CCPct, 1e-9)
	assert.InDelta(t, 10, *jane.Values.SCPct, 1e-9)
	assert.Equal(t, time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC), jane.PeriodDate)
	assert.Equal(t, 2, jane.WeekOfMonth)
	assert.Equal(t, Checksum("Jane Doe", testNow), jane.Checksum)

	john := res.Accepted[1]
	assert.Equal(t, "Alpha", john.TeamName)
	assert.Nil(t, john.Values.SCPct)

	assert.Equal(t, "Beta", res.Accepted[2].TeamName)

	assert.Equal(t, 6, res.Rejected[0].Row)
	assert.Contains(t, res.Rejected[0].Reason, "ccPct")
	assert.Equal(t, "Bob Ray", res.Rejected[0].Data["Name"])
}

func TestTransformCC_KeepSummaryRows(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "cc.xlsx", [][]string{
		{"Name", "CC", "SC"},
		{"Total Recall", "50", "5"},
	})

	skipped := TransformCC(sheet, TransformOptions{Now: testNow})
	assert.Empty(t, skipped.Accepted)
	assert.Empty(t, skipped.Rejected)

	kept := TransformCC(sheet, TransformOptions{Now: testNow, KeepSummaryRows: true})
	require.Len(t, kept.Accepted, 1)
	assert.Equal(t, "TOTAL RECALL", kept.Accepted[0].MentorName)

	custom := TransformCC(sheet, TransformOptions{Now: testNow, SummaryMarkers: []string{"subtotal"}})
	assert.Len(t, custom.Accepted, 1)
}

func TestTransformCC_DateColumn(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "cc.xlsx", [][]string{
		{"Date", "Name", "CC", "SC"},
		{"2024-02-29", "Jane Doe", "70", "8"},
		{"someday", "John Roe", "70", "8"},
	})

	res := TransformCC(sheet, TransformOptions{Now: testNow})
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), res.Accepted[0].PeriodDate)
	assert.Equal(t, 4, res.Accepted[0].WeekOfMonth)
	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "periodDate")
}

func TestTransformCC_Overrides(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "cc.xlsx", [][]string{
		{"Agent", "Cons A", "Cons B"},
		{"Jane Doe", "61", "7"},
	})

	res := TransformCC(sheet, TransformOptions{
		Now: testNow,
		Overrides: model.ColumnMapping{
			model.FieldCCPct: "Cons A",
			model.FieldSCPct: "Cons B",
		},
	})
	require.Len(t, res.Accepted, 1)
	assert.InDelta(t, 61, *res.Accepted[0].Values.CCPct, 1e-9)
	assert.Equal(t, "Cons A", res.ColumnsMapped["ccPct"])
	assert.Equal(t, []string{"Agent", "Cons A", "Cons B"}, res.ColumnsDetected)
}

func TestTransformFixed_AggregatesPerMentor(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "fixed.xlsx", [][]string{
		{"Team", "Name", "Fixed", "Total"},
		{"Alpha", "Jane Doe", "6", "10"},
		{"", "jane doe", "3", "10"},
		{"Beta", "John Roe", "0", "0"},
		{"Beta", "Ann Lee", "x", "10"},
	})

	res := TransformFixed(sheet, TransformOptions{Now: testNow})

	assert.Equal(t, 4, res.Received)
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "JANE DOE", res.Accepted[0].MentorName)
	assert.Equal(t, "Alpha", res.Accepted[0].TeamName)
	assert.InDelta(t, 45, *res.Accepted[0].Values.FixedPct, 1e-9)

	require.Len(t, res.Rejected, 2)
	reasons := []string{res.Rejected[0].Reason, res.Rejected[1].Reason}
	assert.Contains(t, reasons[0], "fixedCount")
	assert.Contains(t, reasons[1], "zero")
}

func TestTransformUP(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "up.xlsx", [][]string{
		{"Name", "Upgrade"},
		{"jane doe", "22"},
	})

	res := TransformUP(sheet, TransformOptions{Now: testNow})
	require.Len(t, res.Accepted, 1)
	assert.InDelta(t, 22, *res.Accepted[0].Values.UPPct, 1e-9)
	assert.Equal(t, "JANE DOE", res.Accepted[0].MentorName)
}

func TestTransformUP_NumericCellsKeepScale(t *testing.T) {
	t.Parallel()

	buf := newWorkbook(t, [][]any{
		{"Name", "Upgrade"},
		{"Jane Doe", 1.5},
		{"John Roe", 0.8},
		{"Ann Lee", "1.5"},
		{"Bob Ray", 22},
	})
	sheet, err := ReadSheet("up.xlsx", buf, ReadOptions{})
	require.NoError(t, err)

	res := TransformUP(sheet, TransformOptions{Now: testNow})
	require.Len(t, res.Accepted, 4)

	got := make(map[string]float64, len(res.Accepted))
	for _, row := range res.Accepted {
		require.NotNil(t, row.Values.UPPct)
		got[row.MentorName] = *row.Values.UPPct
	}
	assert.InDelta(t, 1.5, got["JANE DOE"], 1e-9)
	assert.InDelta(t, 80, got["JOHN ROE"], 1e-9)
	assert.InDelta(t, 150, got["ANN LEE"], 1e-9)
	assert.InDelta(t, 22, got["BOB RAY"], 1e-9)
}

func TestTransformCC_NumericDateCell(t *testing.T) {
	t.Parallel()

	buf := newWorkbook(t, [][]any{
		{"Name", "CC", "SC", "Date"},
		{"Jane Doe", 0.75, 0.1, 45363},
		{"John Roe", 75, 10, 20240312},
	})
	sheet, err := ReadSheet("cc.xlsx", buf, ReadOptions{})
	require.NoError(t, err)

	res := TransformCC(sheet, TransformOptions{Now: testNow})
	require.Len(t, res.Accepted, 2)
	want := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	for _, row := range res.Accepted {
		assert.Equal(t, want, row.PeriodDate)
		assert.InDelta(t, 75, *row.Values.CCPct, 1e-9)
		assert.InDelta(t, 10, *row.Values.SCPct, 1e-9)
	}
}

func TestTransformRE(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "re.xlsx", [][]string{
		{"Team", "CM Name", "leads", "leads ach%", "APP", "Show up", "Paid"},
		{"Alpha", "Jane Doe", "12", "0.8", "3", "5", "2"},
		{"", "John Roe", "", "", "", "1", ""},
	})

	res := TransformRE(sheet, TransformOptions{Now: testNow})
	require.Len(t, res.Accepted, 1)
	v := res.Accepted[0].Values
	assert.Equal(t, 12.0, *v.ReferralLeads)
	assert.Equal(t, 5.0, *v.ReferralShowups)
	assert.Equal(t, 2.0, *v.ReferralPaid)
	assert.InDelta(t, 80, *v.ReferralAchievementPct, 1e-9)

	require.Len(t, res.Rejected, 1)
	assert.Contains(t, res.Rejected[0].Reason, "referralLeads")
}

func TestTransformAllLeads(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "leads.xlsx", [][]string{
		{"Name", "Total Leads", "Recovered", "Unrecovered", "Notes"},
		{"Jane Doe", "40", "10", "30", "no answer | wrong number"},
		{"John Roe", "0", "0", "0", "a, b"},
	})

	res := TransformAllLeads(sheet, TransformOptions{Now: testNow})
	require.Len(t, res.Accepted, 2)

	jane := res.Accepted[0].Values
	assert.InDelta(t, 25, *jane.ConversionPct, 1e-9)
	assert.Equal(t, []string{"no answer", "wrong number"}, jane.Notes)

	john := res.Accepted[1].Values
	assert.Nil(t, john.ConversionPct)
	assert.Equal(t, []string{"a", "b"}, john.Notes)
}

func TestTransformTeams(t *testing.T) {
	t.Parallel()

	sheet := sheetOf(t, "teams.xlsx", [][]string{
		{"Mentor", "Team"},
		{"Jane Doe", "Beta"},
		{"John Roe", ""},
	})

	res := TransformTeams(sheet, TransformOptions{Now: testNow})
	require.Len(t, res.Accepted, 1)
	assert.Equal(t, "Beta", res.Accepted[0].TeamName)
	assert.False(t, res.Accepted[0].Values.HasAny())
	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "missing teamName", res.Rejected[0].Reason)
}

func TestSafeBuild_RecoversPanic(t *testing.T) {
	t.Parallel()

	_, err := safeBuild(func(rowInput) (model.CanonicalRow, error) {
		panic("boom")
	}, rowInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestTransform_UnknownSource(t *testing.T) {
	t.Parallel()

	_, err := Transform(model.SourceNone, &Sheet{}, TransformOptions{})
	assert.Error(t, err)
}
