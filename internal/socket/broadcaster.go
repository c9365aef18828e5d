package socket

// Broadcaster provides high-level methods for broadcasting domain events.
// Every method is fire-and-forget: delivery is best-effort and a publish with
// no subscribers is silently dropped.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// ============================================
// Notification Broadcasting
// ============================================

// NotificationNew pushes a freshly created notification to its recipient
func (b *Broadcaster) NotificationNew(recipientID string, notification map[string]interface{}) {
	b.hub.SendToUser(recipientID, MessageNotificationNew, notification)
}

// NotificationCount updates the unread counter for a user
func (b *Broadcaster) NotificationCount(userID string, unread int) {
	b.hub.SendToUser(userID, MessageNotificationCount, map[string]interface{}{
		"unread": unread,
	})
}

// NotificationRead tells the user's other connections a notification was read
func (b *Broadcaster) NotificationRead(userID, notificationID string) {
	b.hub.SendToUser(userID, MessageNotificationRead, map[string]interface{}{
		"notificationId": notificationID,
	})
}

// ============================================
// Task Broadcasting
// ============================================

// TaskAssigned notifies the assignee directly
func (b *Broadcaster) TaskAssigned(assigneeID string, task map[string]interface{}, assignedBy string) {
	b.hub.SendToUser(assigneeID, MessageTaskAssigned, map[string]interface{}{
		"task":       task,
		"assignedBy": assignedBy,
	})
}

// TaskUpdated broadcasts a task change to its subscribers
func (b *Broadcaster) TaskUpdated(taskID string, task map[string]interface{}, changes []string, excludeUserID string) {
	b.hub.SendToRoom(RoomTaskPrefix+taskID, MessageTaskUpdated, map[string]interface{}{
		"task":          task,
		"changedFields": changes,
		"changedByUser": excludeUserID,
	}, excludeUserID)
}

// TaskCompleted broadcasts task completion to its subscribers
func (b *Broadcaster) TaskCompleted(taskID string, task map[string]interface{}, completedBy string) {
	b.hub.SendToRoom(RoomTaskPrefix+taskID, MessageTaskCompleted, map[string]interface{}{
		"task":        task,
		"completedBy": completedBy,
	}, "")
}

// TaskDeleted broadcasts task deletion to its subscribers
func (b *Broadcaster) TaskDeleted(taskID string, excludeUserID string) {
	b.hub.SendToRoom(RoomTaskPrefix+taskID, MessageTaskDeleted, map[string]interface{}{
		"taskId": taskID,
	}, excludeUserID)
}

// ============================================
// Comment Broadcasting
// ============================================

// CommentCreated broadcasts a new comment to task watchers
func (b *Broadcaster) CommentCreated(taskID string, comment map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(RoomTaskPrefix+taskID, MessageCommentCreated, map[string]interface{}{
		"taskId":  taskID,
		"comment": comment,
	}, excludeUserID)
}

// CommentUpdated broadcasts a comment edit to task watchers
func (b *Broadcaster) CommentUpdated(taskID string, comment map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(RoomTaskPrefix+taskID, MessageCommentUpdated, map[string]interface{}{
		"taskId":  taskID,
		"comment": comment,
	}, excludeUserID)
}

// CommentDeleted broadcasts a comment removal to task watchers
func (b *Broadcaster) CommentDeleted(taskID, commentID string, excludeUserID string) {
	b.hub.SendToRoom(RoomTaskPrefix+taskID, MessageCommentDeleted, map[string]interface{}{
		"taskId":    taskID,
		"commentId": commentID,
	}, excludeUserID)
}

// ============================================
// Team Broadcasting
// ============================================

// MemberJoined announces a new member to the team room
func (b *Broadcaster) MemberJoined(teamID string, member map[string]interface{}) {
	b.hub.SendToRoom(RoomTeamPrefix+teamID, MessageMemberJoined, map[string]interface{}{
		"teamId": teamID,
		"member": member,
	}, "")
}

// MemberRemoved announces a removed member to the team room
func (b *Broadcaster) MemberRemoved(teamID, userID string, excludeUserID string) {
	b.hub.SendToRoom(RoomTeamPrefix+teamID, MessageMemberRemoved, map[string]interface{}{
		"teamId": teamID,
		"userId": userID,
	}, excludeUserID)
}

// TeamUpdated broadcasts a team profile change to its members
func (b *Broadcaster) TeamUpdated(teamID string, team map[string]interface{}, excludeUserID string) {
	b.hub.SendToRoom(RoomTeamPrefix+teamID, MessageTeamUpdated, map[string]interface{}{
		"team": team,
	}, excludeUserID)
}

// TeamDeleted broadcasts team deletion to its members
func (b *Broadcaster) TeamDeleted(teamID string, excludeUserID string) {
	b.hub.SendToRoom(RoomTeamPrefix+teamID, MessageTeamDeleted, map[string]interface{}{
		"teamId": teamID,
	}, excludeUserID)
}
