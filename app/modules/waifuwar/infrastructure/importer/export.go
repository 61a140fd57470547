package importer

import (
	"fmt"

	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
	"github.com/xuri/excelize/v2"
)

// Sheet names of an exported bracket workbook.
const (
	RosterSheet    = "Roster"
	DivisionsSheet = "Divisions"
)

var (
	rosterHeader    = []any{"Position", "Name", "Description", "Group", "Image"}
	divisionsHeader = []any{"Division", "Left", "Left Votes", "Right", "Right Votes"}
)

// Export writes a bracket's roster and current divisions to an xlsx workbook.
// divisions may be empty for brackets that are not in voting.
func Export(roster *waifuwartypes.BracketRoster, divisions []waifuwartypes.Division) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RosterSheet); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(DivisionsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	rosterRows := [][]any{rosterHeader}
	for _, s := range roster.Slots {
		rosterRows = append(rosterRows, []any{s.Position, s.Entrant.Name, s.Entrant.Description, s.Entrant.Group, s.Entrant.ImageRef})
	}
	if err := writeRows(f, RosterSheet, rosterRows, bold); err != nil {
		return nil, err
	}

	divisionRows := [][]any{divisionsHeader}
	for _, d := range divisions {
		divisionRows = append(divisionRows, []any{d.Number, d.Left.Entrant.Name, d.LeftVotes, d.Right.Entrant.Name, d.RightVotes})
	}
	if err := writeRows(f, DivisionsSheet, divisionRows, bold); err != nil {
		return nil, err
	}

	if err := f.SetDocProps(&excelize.DocProperties{Title: roster.Bracket.Name}); err != nil {
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any, headerStyle int) error {
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("invalid cell for row %d: %w", i+1, err)
		}
		if err := f.SetSheetRow(sheet, cellName, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}
	return nil
}
