package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, "recent", json.Unmarshal, json.Marshal, m.recent,
	); err != nil {
		return fmt.Errorf("failed to register recent service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, "clear", json.Unmarshal, json.Marshal, m.clear,
	); err != nil {
		return fmt.Errorf("failed to register clear service: %w", err)
	}

	m.logger.Info("Registered services", "services", "services.notifications.{recent,clear}")
	return nil
}

func (m *Module) recent(_ context.Context, req RecentRequest, _ *mono.Msg) (RecentResponse, error) {
	if req.Limit < 0 {
		return RecentResponse{}, fmt.Errorf("limit must not be negative")
	}
	items := m.inbox.Recent(req.Limit)
	return RecentResponse{Notifications: items, Count: len(items)}, nil
}

func (m *Module) clear(_ context.Context, _ ClearRequest, _ *mono.Msg) (ClearResponse, error) {
	cleared := m.inbox.Len()
	m.inbox.Clear()
	return ClearResponse{Cleared: cleared}, nil
}
