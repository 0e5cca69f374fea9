package service

import (
	"context"
	"sort"
	"time"

	"courier-track/internal/ports"
)

// GetSystemOverview collects aggregate metrics about the current state of the
// system: live simulation count, order counts per status and today's
// delivered total.
func (service *trackingService) GetSystemOverview(ctx context.Context) (ports.SystemOverviewResult, error) {
	var res ports.SystemOverviewResult
	now := time.Now().UTC()
	res.Timestamp = now

	// define the start and end of the day
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	endOfDay := startOfDay.Add(24 * time.Hour)

	service.mu.Lock()
	for _, entry := range service.sessions {
		if entry.session != nil {
			res.Metrics.ActiveSessions++
		}
	}
	service.mu.Unlock()

	// collect the database metrics within a read-only transaction
	err := service.uow.WithinReadTx(ctx, func(txCtx context.Context) error {
		byStatus, err := service.orderRepo.CountByStatus(txCtx)
		if err != nil {
			return err
		}
		res.Metrics.OrdersByStatus = make(map[string]int, len(byStatus))
		for status, n := range byStatus {
			res.Metrics.OrdersByStatus[status.String()] = n
		}

		deliveredToday, err := service.orderRepo.CountDeliveredBetween(txCtx, startOfDay, endOfDay)
		if err != nil {
			return err
		}
		res.Metrics.DeliveredToday = deliveredToday

		return nil
	})
	if err != nil {
		return ports.SystemOverviewResult{}, err
	}

	return res, nil
}

// ActiveSessions returns a point-in-time view of every running courier
// simulation, sorted by order ID for stable output.
func (service *trackingService) ActiveSessions(_ context.Context) []ports.ActiveSessionInfo {
	service.mu.Lock()
	entries := make(map[string]*activeSession, len(service.sessions))
	for orderID, entry := range service.sessions {
		if entry.session == nil {
			// in-flight start reservation; not observable yet
			continue
		}
		entries[orderID] = entry
	}
	service.mu.Unlock()

	// read each session snapshot outside the registry lock
	infos := make([]ports.ActiveSessionInfo, 0, len(entries))
	for orderID, entry := range entries {
		snap := entry.session.Snapshot()
		infos = append(infos, ports.ActiveSessionInfo{
			OrderID:    orderID,
			SessionID:  entry.session.ID,
			CustomerID: entry.customerID,
			State:      snap.State.String(),
			ETAMinutes: snap.ETAMinutes,
			Position:   snap.Position,
			Target:     entry.session.Target(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].OrderID < infos[j].OrderID })
	return infos
}
