package handlers

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/middleware"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/query"
	"github.com/tunebridge/console/internal/services"
)

// SearchSocket runs a query coordinator per websocket connection, so
// keystroke debouncing and stale-response discarding happen server-side.
type SearchSocket struct {
	service      services.WorkflowService
	debounce     time.Duration
	defaultLimit int
	maxLimit     int
	logger       *zap.Logger
}

func NewSearchSocket(service services.WorkflowService, debounce time.Duration, defaultLimit, maxLimit int, logger *zap.Logger) *SearchSocket {
	return &SearchSocket{
		service:      service,
		debounce:     debounce,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger,
	}
}

// searchCommand is one client message. Type is one of search, status,
// category, sort_order, page, limit, refresh or more. more appends the
// page after the last one shown, for infinite-scroll pickers.
type searchCommand struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type searchEvent struct {
	Generation uint64                  `json:"generation"`
	State      query.State             `json:"state"`
	Items      []models.WorkflowEntity `json:"items,omitempty"`
	Pagination *models.Pagination      `json:"pagination,omitempty"`
	Error      string                  `json:"error,omitempty"`
	Append     bool                    `json:"append,omitempty"`
	Done       bool                    `json:"done,omitempty"`
}

// scroller pages forward from the coordinator's current page. It starts
// over whenever the query itself changes.
type scroller struct {
	fetch query.Fetcher
	pager *query.Pager
}

func (s *scroller) more(ctx context.Context, current query.State) searchEvent {
	if s.pager == nil || s.pager.State().Key() != current.WithPage(1).Key() {
		s.pager = query.NewPager(current, s.fetch)
		s.pager.Seek(current.Page + 1)
	}

	ev := searchEvent{State: current, Append: true}
	if s.pager.Done() {
		ev.Done = true
		return ev
	}
	items, err := s.pager.Next(ctx)
	if err != nil {
		ev.Error = err.Error()
		return ev
	}
	p := s.pager.Pagination()
	ev.Items = items
	ev.Pagination = &p
	ev.Done = s.pager.Done()
	return ev
}

// Upgrade rejects plain HTTP requests and checks view permission before
// the handshake.
func (h *SearchSocket) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	entity, err := entityParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if ok, err := authorize(c, models.ViewPermission(entity)); !ok {
		return err
	}
	c.Locals("entity", entity)
	c.Locals("actor", actorFrom(c))
	return c.Next()
}

// Handler serves GET /ws/search/:entity.
func (h *SearchSocket) Handler() fiber.Handler {
	return websocket.New(h.serve)
}

func (h *SearchSocket) serve(conn *websocket.Conn) {
	entity, _ := conn.Locals("entity").(models.EntityType)
	actor, _ := conn.Locals("actor").(services.Actor)
	if actor.Operator == nil {
		actor.Operator, _ = conn.Locals(middleware.LocalOperator).(*models.Operator)
	}

	category, err := models.ParseCategory(entity, conn.Query("category"))
	if err != nil {
		_ = conn.WriteJSON(searchEvent{Error: err.Error()})
		return
	}

	var writeMu sync.Mutex
	deliver := func(d query.Delivery) {
		ev := searchEvent{Generation: d.Generation, State: d.State}
		if d.Err != nil {
			ev.Error = d.Err.Error()
		} else if d.Page != nil {
			ev.Items = d.Page.Items
			p := d.Page.Pagination
			ev.Pagination = &p
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(ev); err != nil {
			h.logger.Debug("search socket write failed", zap.Error(err))
		}
	}
	fetch := func(ctx context.Context, state query.State) (*models.EntityPage, error) {
		return h.service.List(ctx, actor, state)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coord := query.NewCoordinator(ctx, query.NewState(entity, category, h.defaultLimit), h.debounce, fetch, deliver)
	defer coord.Close()
	coord.Refresh()
	scroll := &scroller{fetch: fetch}

	for {
		var cmd searchCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		if cmd.Type == "more" {
			ev := scroll.more(ctx, coord.State())
			writeMu.Lock()
			_ = conn.WriteJSON(ev)
			writeMu.Unlock()
			continue
		}
		if err := h.apply(coord, entity, cmd); err != nil {
			writeMu.Lock()
			_ = conn.WriteJSON(searchEvent{State: coord.State(), Error: err.Error()})
			writeMu.Unlock()
		}
	}
}

func (h *SearchSocket) apply(coord *query.Coordinator, entity models.EntityType, cmd searchCommand) error {
	switch cmd.Type {
	case "search":
		coord.SetSearch(cmd.Value)
	case "status":
		if cmd.Value == "" {
			coord.SetStatus("")
			return nil
		}
		status, err := models.ParseStatus(entity, cmd.Value)
		if err != nil {
			return err
		}
		coord.SetStatus(status)
	case "category":
		category, err := models.ParseCategory(entity, cmd.Value)
		if err != nil {
			return err
		}
		coord.SetCategory(category)
	case "sort_order":
		if models.SortOrder(cmd.Value) == models.SortOldest {
			coord.SetSortOrder(models.SortOldest)
		} else {
			coord.SetSortOrder(models.SortNewest)
		}
	case "page":
		page, err := strconv.Atoi(cmd.Value)
		if err != nil {
			return err
		}
		coord.SetPage(page)
	case "limit":
		limit, err := strconv.Atoi(cmd.Value)
		if err != nil || limit < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}
		if limit > h.maxLimit {
			limit = h.maxLimit
		}
		coord.SetLimit(limit)
	case "refresh":
		coord.Refresh()
	default:
		return fiber.NewError(fiber.StatusBadRequest, "unknown command "+strconv.Quote(cmd.Type))
	}
	return nil
}
