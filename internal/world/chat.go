package world

// ChatEntry is one spoken line waiting to be broadcast.
type ChatEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Text     string `json:"text"`
}

// maxPendingChat bounds the chat buffer between broadcasts. Overflow drops
// the oldest lines.
const maxPendingChat = 256

// AppendChat queues a spoken line for the next state broadcast.
func (w *World) AppendChat(entry ChatEntry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chat = append(w.chat, entry)
	if len(w.chat) > maxPendingChat {
		w.chat = w.chat[len(w.chat)-maxPendingChat:]
	}
}

// DrainChat returns the queued chat lines and clears the buffer.
func (w *World) DrainChat() []ChatEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.chat) == 0 {
		return nil
	}
	drained := w.chat
	w.chat = nil
	return drained
}
