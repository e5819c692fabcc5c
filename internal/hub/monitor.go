package hub

import (
	"sort"

	"Helpdesk/internal/model"
)

// MonitorService provides methods to gather hub statistics
type MonitorService struct {
	hub *Hub
}

// NewMonitorService creates a new monitor service
func NewMonitorService(hub *Hub) *MonitorService {
	return &MonitorService{hub: hub}
}

// GetStats gathers and returns all hub statistics
func (ms *MonitorService) GetStats() model.MonitorResponse {
	connectionStats := ms.getConnectionStats()
	roomStats := ms.getRoomStats()
	clients := ms.getClientList()

	// Determine overall health status
	status := "healthy"
	if connectionStats.TotalConnected == 0 {
		status = "idle"
	}

	return model.MonitorResponse{
		Status:      status,
		Connections: connectionStats,
		Rooms:       roomStats,
		Clients:     clients,
	}
}

func (ms *MonitorService) getConnectionStats() model.ConnectionStats {
	ms.hub.onlineMu.RLock()
	defer ms.hub.onlineMu.RUnlock()

	return model.ConnectionStats{
		TotalConnected: len(ms.hub.online),
	}
}

func (ms *MonitorService) getRoomStats() model.RoomStats {
	snapshot := ms.hub.rooms.snapshot()

	stats := model.RoomStats{
		RoomDetails: make([]model.RoomInfo, 0, len(snapshot)),
	}
	for conversationID, memberIDs := range snapshot {
		sort.Strings(memberIDs)
		stats.RoomDetails = append(stats.RoomDetails, model.RoomInfo{
			ConversationID: conversationID,
			TotalMembers:   len(memberIDs),
			MemberIDs:      memberIDs,
		})
		stats.TotalRooms++
	}

	sort.Slice(stats.RoomDetails, func(i, j int) bool {
		return stats.RoomDetails[i].ConversationID < stats.RoomDetails[j].ConversationID
	})
	return stats
}

func (ms *MonitorService) getClientList() []model.ClientInfo {
	ms.hub.onlineMu.RLock()
	defer ms.hub.onlineMu.RUnlock()

	clients := make([]model.ClientInfo, 0, len(ms.hub.online))
	for _, client := range ms.hub.online {
		clients = append(clients, model.ClientInfo{
			ClientID: client.ID,
			UserID:   client.operator.UserID,
			UserName: client.operator.UserName,
			Role:     client.operator.Role,
		})
	}
	return clients
}
