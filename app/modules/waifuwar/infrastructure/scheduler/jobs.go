package collapsequeue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	waifuwarevents "github.com/Black-And-White-Club/waifu-bot/pkg/events/waifuwar"
	"github.com/Black-And-White-Club/waifu-bot/pkg/handlerwrapper"
	"github.com/Black-And-White-Club/waifu-bot/pkg/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/riverqueue/river"
)

const (
	// QueueName is the dedicated river queue for collapse jobs.
	QueueName = "waifuwar"
	// CollapseJobKind identifies collapse jobs in river_job.
	CollapseJobKind = "waifuwar_round_collapse"
)

// CollapseJob is a scheduled collapse of a guild's votable bracket. When due it
// publishes a RoundCollapseRequested event carrying Request.
type CollapseJob struct {
	Request waifuwarevents.RoundCollapseRequestedPayloadV1 `json:"request"`
}

// Kind returns the job type identifier for River
func (CollapseJob) Kind() string { return CollapseJobKind }

// InsertOpts places collapse jobs on their queue. A bracket can have at most
// one pending collapse with the same arguments.
func (CollapseJob) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueName,
		MaxAttempts: 5,
		UniqueOpts:  river.UniqueOpts{ByArgs: true},
	}
}

// CollapseWorker publishes the collapse request of a due job.
type CollapseWorker struct {
	river.WorkerDefaults[CollapseJob]
	logger    *slog.Logger
	publisher message.Publisher
}

func NewCollapseWorker(logger *slog.Logger, publisher message.Publisher) *CollapseWorker {
	return &CollapseWorker{logger: logger, publisher: publisher}
}

func (w *CollapseWorker) Work(ctx context.Context, job *river.Job[CollapseJob]) error {
	req := job.Args.Request
	correlationID := "river-" + strconv.FormatInt(job.ID, 10)
	ctx = attr.WithCorrelationID(ctx, correlationID)

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal collapse request: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(handlerwrapper.MetadataCorrelationID, correlationID)
	msg.Metadata.Set(handlerwrapper.MetadataTopic, waifuwarevents.RoundCollapseRequestedV1)
	msg.SetContext(ctx)

	if err := w.publisher.Publish(waifuwarevents.RoundCollapseRequestedV1, msg); err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish scheduled collapse",
			attr.ExtractCorrelationID(ctx),
			attr.GuildID(string(req.GuildID)),
			attr.BracketID(req.BracketID),
			attr.Int("attempt", job.Attempt),
			attr.Error(err),
		)
		return fmt.Errorf("failed to publish collapse request: %w", err)
	}

	w.logger.InfoContext(ctx, "Scheduled collapse published",
		attr.ExtractCorrelationID(ctx),
		attr.GuildID(string(req.GuildID)),
		attr.BracketID(req.BracketID),
	)
	return nil
}
