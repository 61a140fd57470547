package waifuwarhandlers

import (
	"context"
	"fmt"
	"strings"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/charts"
	"github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/infrastructure/importer"
	"github.com/Black-And-White-Club/waifu-bot/pkg/embedpager"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	waifuwartypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/waifuwar"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *WaifuWarHandlers) createBracket(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	name := cmd.rest(0)
	if name == "" {
		return nil, &usageError{usage: "bracket create <name>"}
	}
	b, err := h.service.CreateBracket(ctx, name, cmd.GuildID)
	if err != nil {
		return nil, err
	}
	rp := success("Bracket Created", "The bracket has been created.")
	rp.fields = []embedpager.Field{field("Bracket ID", b.ID), field("Bracket Name", b.Name)}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) showBracket(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	id, err := h.bracketArg(ctx, cmd, 0, "bracket show [bracket id]")
	if err != nil {
		return nil, err
	}
	roster, err := h.service.ListRoster(ctx, id)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(roster.Slots))
	for i, s := range roster.Slots {
		lines[i] = slotLine(s)
	}
	rp := notice(roster.Bracket.Name, "")
	rp.fields = []embedpager.Field{
		field("Bracket ID", roster.Bracket.ID),
		field("State", statusTitle(roster.Bracket.Status)),
		field("Waifus", len(roster.Slots)),
		block("Roster", orNone(strings.Join(lines, "\n"))),
	}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) listBrackets(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	status := waifuwartypes.StatusAll
	if raw := cmd.rest(0); raw != "" {
		parsed, err := waifuwartypes.ParseBracketStatus(raw)
		if err != nil {
			return nil, &waifuwarservice.InvalidStatusError{Raw: raw}
		}
		status = parsed
	}
	brackets, err := h.service.ListBrackets(ctx, cmd.GuildID, status)
	if err != nil {
		return nil, err
	}
	if len(brackets) == 0 {
		return cmd.send(problem("No Brackets", "No brackets exist for the given state.")), nil
	}
	lines := make([]string, len(brackets))
	for i, b := range brackets {
		lines[i] = fmt.Sprintf("**%d**: %s (%s)", b.ID, b.Name, statusTitle(b.Status))
	}
	rp := notice("Brackets", "Here are the brackets for the given state.")
	rp.fields = []embedpager.Field{block("Brackets", strings.Join(lines, "\n"))}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) addToRoster(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	const usage = "bracket entrant add <bracket id> <waifu>"
	if len(cmd.args) < 2 {
		return nil, &usageError{usage: usage}
	}
	id, err := parseID(cmd.args[0], usage)
	if err != nil {
		return nil, err
	}
	slot, err := h.service.AddToRoster(ctx, id, cmd.rest(1))
	if err != nil {
		return nil, err
	}
	rp := success("Waifu Added", "The waifu has been added to the bracket.")
	rp.fields = []embedpager.Field{field("Waifu Bracket", id), field("Bracket Waifu ID", slot.Position), field("Waifu Name", slot.Entrant.Name)}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) removeFromRoster(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	const usage = "bracket entrant remove <bracket id> <waifu id>"
	if len(cmd.args) != 2 {
		return nil, &usageError{usage: usage}
	}
	id, err := parseID(cmd.args[0], usage)
	if err != nil {
		return nil, err
	}
	position, err := parseNumber(cmd.args[1], usage)
	if err != nil {
		return nil, err
	}
	if err := h.service.RemoveFromRoster(ctx, id, position); err != nil {
		return nil, err
	}
	return cmd.send(success("Deleted Waifu", "Waifu has been deleted.")), nil
}

func (h *WaifuWarHandlers) startVote(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	const usage = "bracket start-vote <bracket id>"
	if len(cmd.args) != 1 {
		return nil, &usageError{usage: usage}
	}
	id, err := parseID(cmd.args[0], usage)
	if err != nil {
		return nil, err
	}
	b, err := h.service.StartVote(ctx, id, cmd.GuildID)
	if err != nil {
		return nil, err
	}
	rp := success("Vote Started", "Voting has now started")
	rp.fields = []embedpager.Field{field("Bracket ID", b.ID), field("Bracket Name", b.Name)}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) collapseRound(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	result, err := h.service.CollapseRound(ctx, cmd.GuildID, cmd.rest(0))
	if err != nil {
		return nil, err
	}
	return h.collapsed(cmd.request, result), nil
}

func (h *WaifuWarHandlers) scheduleCollapse(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	if len(cmd.args) < 2 {
		return nil, &usageError{usage: "bracket schedule-collapse <round name|-> <when>"}
	}
	suffix := cmd.args[0]
	if suffix == "-" {
		suffix = ""
	}
	scheduled, err := h.service.ScheduleCollapse(ctx, waifuwarservice.ScheduleCollapseRequest{
		GuildID:     cmd.GuildID,
		ChannelID:   cmd.ChannelID,
		RequestedBy: cmd.UserID,
		Suffix:      suffix,
		When:        cmd.rest(1),
	})
	if err != nil {
		return nil, err
	}
	rp := success("Collapse Scheduled", "The round will be collapsed at the scheduled time.")
	rp.fields = []embedpager.Field{
		field("Bracket ID", scheduled.BracketID),
		field("Collapse Time", fmt.Sprintf("<t:%d:F>", scheduled.At.Unix())),
	}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) duplicateBracket(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	const usage = "bracket duplicate <bracket id> <new name>"
	if len(cmd.args) < 2 {
		return nil, &usageError{usage: usage}
	}
	id, err := parseID(cmd.args[0], usage)
	if err != nil {
		return nil, err
	}
	b, err := h.service.DuplicateBracket(ctx, id, cmd.rest(1), cmd.GuildID)
	if err != nil {
		return nil, err
	}
	rp := success("Bracket Duplicated", "The Bracket has been successfully duplicated!")
	rp.fields = []embedpager.Field{field("Old Bracket ID", id), field("New Bracket ID", b.ID), field("New Bracket Name", b.Name)}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) lockBracket(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	const usage = "bracket lock <bracket id>"
	if len(cmd.args) != 1 {
		return nil, &usageError{usage: usage}
	}
	id, err := parseID(cmd.args[0], usage)
	if err != nil {
		return nil, err
	}
	if _, err := h.service.LockBracket(ctx, id); err != nil {
		return nil, err
	}
	return cmd.send(success("Closed Bracket", "Bracket has been locked.")), nil
}

func (h *WaifuWarHandlers) bracketGroups(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	id, err := h.bracketArg(ctx, cmd, 0, "bracket groups [bracket id]")
	if err != nil {
		return nil, err
	}
	groups, err := h.service.ListGroups(ctx, id)
	if err != nil {
		return nil, err
	}
	rp := notice("Animes", fmt.Sprintf("The animes in bracket %d.", id))
	rp.fields = []embedpager.Field{block("Animes", orNone(strings.Join(groups, "\n")))}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) chartBracket(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	id, err := h.bracketArg(ctx, cmd, 0, "bracket chart [bracket id]")
	if err != nil {
		return nil, err
	}
	b, err := h.service.GetBracket(ctx, id)
	if err != nil {
		return nil, err
	}
	divisions, err := h.service.ListDivisions(ctx, id)
	if err != nil {
		return nil, err
	}
	png, err := charts.RenderTally(b.Name, divisions, charts.DefaultPalette)
	if err != nil {
		return nil, fmt.Errorf("failed to render tally chart: %w", err)
	}
	rp := notice(b.Name, "Current votes per division.")
	rp.attachment = &waifuwarevents.AttachmentV1{
		Filename:    fmt.Sprintf("bracket-%d.png", id),
		ContentType: "image/png",
		Data:        png,
	}
	rp.embed.ImageURL = "attachment://" + rp.attachment.Filename
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) exportBracket(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	id, err := h.bracketArg(ctx, cmd, 0, "bracket export [bracket id]")
	if err != nil {
		return nil, err
	}
	roster, err := h.service.ListRoster(ctx, id)
	if err != nil {
		return nil, err
	}
	var divisions []waifuwartypes.Division
	if roster.Bracket.Status != waifuwartypes.StatusOpen {
		if divisions, err = h.service.ListDivisions(ctx, id); err != nil {
			return nil, err
		}
	}
	data, err := importer.Export(roster, divisions)
	if err != nil {
		return nil, fmt.Errorf("failed to export bracket: %w", err)
	}
	rp := success("Bracket Exported", roster.Bracket.Name)
	rp.attachment = &waifuwarevents.AttachmentV1{
		Filename:    fmt.Sprintf("bracket-%d.xlsx", id),
		ContentType: xlsxContentType,
		Data:        data,
	}
	return cmd.send(rp), nil
}
