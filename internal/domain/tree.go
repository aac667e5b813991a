package domain

import "time"

type TreeStatus string

const (
	TreeDraft    TreeStatus = "draft"
	TreeActive   TreeStatus = "active"
	TreeArchived TreeStatus = "archived"
)

const defaultTimeoutSeconds = 300

// CallingTree is the ordered escalation hierarchy a notification walks.
// Trees are authored by the surrounding application; this service only reads them,
// and membership is snapshotted at dispatch time so in-flight notifications are
// unaffected by later edits.
type CallingTree struct {
	TreeID         string     `json:"id" dynamodbav:"tree_id"`
	OrganizationID string     `json:"organization_id" dynamodbav:"organization_id"`
	Name           string     `json:"name" dynamodbav:"name"`
	Description    *string    `json:"description" dynamodbav:"description"`
	Status         TreeStatus `json:"status" dynamodbav:"status"`
	TimeoutSeconds int        `json:"timeout_seconds" dynamodbav:"timeout_seconds"`
	CreatedBy      *string    `json:"created_by" dynamodbav:"created_by"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

// ResponseWindow is how long a dispatched level has to produce acknowledgments
// before the engine escalates past it.
func (t *CallingTree) ResponseWindow() time.Duration {
	secs := t.TimeoutSeconds
	if secs <= 0 {
		secs = defaultTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// TreeNode places one member at one level of a tree. A backup user is notified
// only if tree authoring models it as its own node; the engine never fans out
// to backups on its own.
type TreeNode struct {
	NodeID       string  `json:"id" dynamodbav:"node_id"`
	TreeID       string  `json:"tree_id" dynamodbav:"tree_id"`
	ParentNodeID *string `json:"parent_node_id" dynamodbav:"parent_node_id"`
	UserID       string  `json:"user_id" dynamodbav:"user_id"`
	Level        int     `json:"level" dynamodbav:"level"`
	Position     int     `json:"position" dynamodbav:"position"`
	BackupUserID *string `json:"backup_user_id" dynamodbav:"backup_user_id"`
}

// TreeLevel is the membership snapshot of one populated level. Levels start at 1;
// numbering gaps are legal and simply absent from the slice, so escalation walks
// the populated sequence in order.
type TreeLevel struct {
	Level int        `json:"level"`
	Nodes []TreeNode `json:"nodes"`
}

// Member is the read-only contact sliver of a profile that the notifier needs
// to reach a recipient. Profile ownership stays with the surrounding application.
type Member struct {
	UserID      string  `json:"id" dynamodbav:"user_id"`
	FullName    string  `json:"full_name" dynamodbav:"full_name"`
	Email       *string `json:"email" dynamodbav:"email"`
	Phone       *string `json:"phone" dynamodbav:"phone"`
	DeviceToken *string `json:"-" dynamodbav:"device_token"`
}
