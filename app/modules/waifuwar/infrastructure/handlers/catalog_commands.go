package waifuwarhandlers

import (
	"context"
	"fmt"
	"strings"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	"github.com/Black-And-White-Club/waifu-bot/pkg/embedpager"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
)

func (h *WaifuWarHandlers) addEntrant(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	if len(cmd.args) < 3 {
		return nil, &usageError{usage: "entrant add <name> <image> <anime> <description>"}
	}
	e, err := h.service.AddEntrant(ctx, waifuwarservice.AddEntrantInput{
		Name:        cmd.args[0],
		ImageRef:    cmd.args[1],
		Group:       cmd.args[2],
		Description: cmd.rest(3),
	})
	if err != nil {
		return nil, err
	}
	added := success("Waifu Added", "The waifu has been added to the global list.")
	return cmd.send(added, entrantReply(*e, 0, 0)), nil
}

func (h *WaifuWarHandlers) showEntrant(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	target := cmd.rest(0)
	if target == "" {
		return nil, &usageError{usage: "entrant show <waifu>"}
	}
	e, err := h.service.FindEntrant(ctx, target)
	if err != nil {
		return nil, err
	}
	return cmd.send(entrantReply(*e, 0, 0)), nil
}

func (h *WaifuWarHandlers) listEntrants(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	entrants, err := h.service.ListEntrants(ctx)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(entrants))
	for i, e := range entrants {
		lines[i] = fmt.Sprintf("**%d**: %s", e.ID, contender(e))
	}
	rp := notice("Global Waifu List", "")
	rp.fields = []embedpager.Field{block("Waifus", orNone(strings.Join(lines, "\n")))}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) listGroups(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	groups, err := h.service.ListGroups(ctx, 0)
	if err != nil {
		return nil, err
	}
	rp := notice("Animes", "Every anime in the global waifu list.")
	rp.fields = []embedpager.Field{block("Animes", orNone(strings.Join(groups, "\n")))}
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) showGroup(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	name := cmd.rest(0)
	if name == "" {
		return nil, &usageError{usage: "entrant group <anime>"}
	}
	g, err := h.service.FindGroup(ctx, name)
	if err != nil {
		return nil, err
	}
	lines := make([]string, len(g.Entrants))
	for i, e := range g.Entrants {
		lines[i] = fmt.Sprintf("**%d**: %s", e.ID, contender(e))
	}
	rp := notice(g.Name, "")
	if len(g.Aliases) > 0 {
		rp.fields = append(rp.fields, block("Aliases", strings.Join(g.Aliases, "\n")))
	}
	rp.fields = append(rp.fields, block("Waifus", orNone(strings.Join(lines, "\n"))))
	return cmd.send(rp), nil
}

func (h *WaifuWarHandlers) addAliases(ctx context.Context, cmd command) ([]handlerwrapper.Result, error) {
	if len(cmd.args) == 0 {
		return nil, &usageError{usage: "alias add <name> <alias>..."}
	}
	outcomes, err := h.service.AddAliases(ctx, cmd.args[0], cmd.args[1:]...)
	if err != nil {
		return nil, err
	}

	var added, taken []string
	for _, o := range outcomes {
		if o.Added {
			added = append(added, o.Alias)
			continue
		}
		taken = append(taken, fmt.Sprintf("%s (already means %s)", o.Alias, o.Canonical))
	}

	var replies []reply
	if len(added) > 0 {
		rp := success("Alias Added", "The alias was successfully added.")
		rp.fields = []embedpager.Field{field("Name", cmd.args[0]), block("Aliases", strings.Join(added, "\n"))}
		replies = append(replies, rp)
	}
	if len(taken) > 0 {
		replies = append(replies, problem("Alias Already Exists", "The given alias already exists.", block("Aliases", strings.Join(taken, "\n"))))
	}
	return cmd.send(replies...), nil
}
