package chathistory

import "time"

// Entry is one turn of a conversation.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// History is the conversation one user has about one document.
type History struct {
	DocumentID  string    `json:"documentId"`
	OwnerID     string    `json:"ownerId"`
	Entries     []Entry   `json:"entries"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Key derives the single string key for a (document, owner) pair.
func Key(documentID, ownerID string) string {
	return documentID + "_" + ownerID
}
