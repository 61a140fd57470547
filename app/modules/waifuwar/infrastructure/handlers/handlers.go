package waifuwarhandlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	waifuwarservice "github.com/Black-And-White-Club/waifu-bot/app/modules/waifuwar/application"
	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCommandPrefix is the prefix shown in help texts.
const DefaultCommandPrefix = "%ww"

// WaifuWarHandlers implements the Handlers interface.
type WaifuWarHandlers struct {
	service waifuwarservice.Service
	logger  *slog.Logger
	tracer  trace.Tracer
	limiter *UserRateLimiter
	prefix  string
	routes  map[string]route
}

// Option customizes WaifuWarHandlers.
type Option func(*WaifuWarHandlers)

// WithRateLimiter throttles commands per user.
func WithRateLimiter(limiter *UserRateLimiter) Option {
	return func(h *WaifuWarHandlers) { h.limiter = limiter }
}

// WithCommandPrefix sets the prefix quoted in help texts.
func WithCommandPrefix(prefix string) Option {
	return func(h *WaifuWarHandlers) {
		if prefix != "" {
			h.prefix = prefix
		}
	}
}

// NewWaifuWarHandlers creates a new WaifuWarHandlers instance.
func NewWaifuWarHandlers(
	service waifuwarservice.Service,
	logger *slog.Logger,
	tracer trace.Tracer,
	opts ...Option,
) Handlers {
	h := &WaifuWarHandlers{
		service: service,
		logger:  logger,
		tracer:  tracer,
		prefix:  DefaultCommandPrefix,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.routes = h.commandRoutes()
	return h
}

// command is a parsed CommandRequested payload.
type command struct {
	request
	isOwner bool
	args    []string
	mention *sharedtypes.DiscordID
}

// rest joins the arguments from i on, for names containing spaces.
func (c command) rest(i int) string {
	if i >= len(c.args) {
		return ""
	}
	return strings.TrimSpace(strings.Join(c.args[i:], " "))
}

type commandFunc func(ctx context.Context, cmd command) ([]handlerwrapper.Result, error)

type route struct {
	run       commandFunc
	ownerOnly bool
	usage     string
}

// usageError reports arguments that do not fit the command.
type usageError struct {
	usage string
}

func (e *usageError) Error() string { return "usage: " + e.usage }

func (h *WaifuWarHandlers) commandRoutes() map[string]route {
	return map[string]route{
		"bracket create":            {run: h.createBracket, ownerOnly: true, usage: "bracket create <name>"},
		"bracket show":              {run: h.showBracket, usage: "bracket show [bracket id]"},
		"bracket list":              {run: h.listBrackets, usage: "bracket list [state]"},
		"bracket entrant add":       {run: h.addToRoster, ownerOnly: true, usage: "bracket entrant add <bracket id> <waifu>"},
		"bracket entrant remove":    {run: h.removeFromRoster, ownerOnly: true, usage: "bracket entrant remove <bracket id> <waifu id>"},
		"bracket start-vote":        {run: h.startVote, ownerOnly: true, usage: "bracket start-vote <bracket id>"},
		"bracket collapse":          {run: h.collapseRound, ownerOnly: true, usage: "bracket collapse [round name]"},
		"bracket schedule-collapse": {run: h.scheduleCollapse, ownerOnly: true, usage: "bracket schedule-collapse <round name|-> <when>"},
		"bracket duplicate":         {run: h.duplicateBracket, ownerOnly: true, usage: "bracket duplicate <bracket id> <new name>"},
		"bracket lock":              {run: h.lockBracket, ownerOnly: true, usage: "bracket lock <bracket id>"},
		"bracket groups":            {run: h.bracketGroups, usage: "bracket groups [bracket id]"},
		"bracket chart":             {run: h.chartBracket, usage: "bracket chart [bracket id]"},
		"bracket export":            {run: h.exportBracket, ownerOnly: true, usage: "bracket export [bracket id]"},
		"division show":             {run: h.showDivisionCommand, usage: "division show [bracket id] <division>"},
		"division list":             {run: h.listDivisions, usage: "division list [bracket id]"},
		"vote cast":                 {run: h.castVote, usage: "vote cast <waifu>"},
		"vote retract":              {run: h.retractVote, usage: "vote retract <waifu>"},
		"vote show":                 {run: h.showVotes, usage: "vote show <@user|waifu>"},
		"vote last":                 {run: h.lastDivision, usage: "vote last"},
		"vote missing":              {run: h.missingDivisions, usage: "vote missing [@user]"},
		"alias add":                 {run: h.addAliases, ownerOnly: true, usage: "alias add <name> <alias>..."},
		"entrant add":               {run: h.addEntrant, ownerOnly: true, usage: "entrant add <name> <image> <anime> <description>"},
		"entrant show":              {run: h.showEntrant, usage: "entrant show <waifu>"},
		"entrant list":              {run: h.listEntrants, usage: "entrant list"},
		"entrant groups":            {run: h.listGroups, usage: "entrant groups"},
		"entrant group":             {run: h.showGroup, usage: "entrant group <anime>"},
		"guide":                     {run: h.guide, usage: "guide"},
		"start-voting":              {run: h.startVoting, usage: "start-voting"},
	}
}

// routeKey folds the nested "bracket entrant <verb>" form into one key.
func routeKey(payload *waifuwarevents.CommandRequestedPayloadV1) (string, []string) {
	name := strings.ToLower(strings.TrimSpace(payload.Command))
	sub := strings.ToLower(strings.TrimSpace(payload.Subcommand))
	args := payload.Args
	if sub == "" {
		return name, args
	}
	if name == "bracket" && sub == "entrant" && len(args) > 0 {
		return name + " entrant " + strings.ToLower(args[0]), args[1:]
	}
	return name + " " + sub, args
}

// HandleCommand runs one user command.
func (h *WaifuWarHandlers) HandleCommand(ctx context.Context, payload *waifuwarevents.CommandRequestedPayloadV1) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "WaifuWarHandlers.HandleCommand")
	defer span.End()

	key, args := routeKey(payload)
	req := request{GuildID: payload.GuildID, ChannelID: payload.ChannelID, UserID: payload.UserID}

	h.logger.InfoContext(ctx, "Waifu war command received",
		attr.ExtractCorrelationID(ctx),
		attr.GuildID(string(payload.GuildID)),
		attr.UserID(string(payload.UserID)),
		attr.String("command", key),
	)

	if h.limiter != nil && !h.limiter.Allow(payload.UserID) {
		h.logger.WarnContext(ctx, "Command rate limited",
			attr.ExtractCorrelationID(ctx),
			attr.UserID(string(payload.UserID)),
		)
		return req.send(problem("Slow Down", "You are sending commands too quickly. Try again in a moment.")), nil
	}

	rt, ok := h.routes[key]
	if !ok {
		return req.send(h.unknownCommand(key)), nil
	}
	if rt.ownerOnly && !payload.IsOwner {
		return req.send(problem("Owner Only", "Only the bot owner can use "+h.usage(key)+".")), nil
	}

	results, err := rt.run(ctx, command{request: req, isOwner: payload.IsOwner, args: args, mention: payload.MentionUserID})
	if err != nil {
		var bad *usageError
		if errors.As(err, &bad) {
			return req.send(problem("Invalid Arguments", "The command was not used correctly.", block("Usage", h.usage(bad.usage)))), nil
		}
		return h.respond(ctx, req, key, err), nil
	}
	return results, nil
}

func (h *WaifuWarHandlers) unknownCommand(key string) reply {
	lines := make([]string, 0, len(h.routes))
	for _, rt := range h.routes {
		lines = append(lines, h.usage(rt.usage))
	}
	sort.Strings(lines)
	return problem("Unknown Command", fmt.Sprintf("%q is not a waifu war command.", key), block("Commands", strings.Join(lines, "\n")))
}

// parseID parses a positive numeric id argument.
func parseID(raw, usage string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, &usageError{usage: usage}
	}
	return id, nil
}

func parseNumber(raw, usage string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, &usageError{usage: usage}
	}
	return n, nil
}

// bracketArg returns the bracket id in args[i], or the guild's votable bracket
// when the argument is absent.
func (h *WaifuWarHandlers) bracketArg(ctx context.Context, cmd command, i int, usage string) (int64, error) {
	if i < len(cmd.args) {
		return parseID(cmd.args[i], usage)
	}
	b, err := h.service.FindVotable(ctx, cmd.GuildID)
	if err != nil {
		return 0, err
	}
	return b.ID, nil
}
