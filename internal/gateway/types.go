package gateway

import "time"

// Wire types for the marketplace REST API. The backend is the system of
// record for all of these; stores hold fetched copies and never invent
// fields locally beyond the documented optimistic stamps.

// Project statuses as the backend reports them.
const (
	ProjectAwaitingFinalization = "awaiting-finalization"
	ProjectInProgress           = "in-progress"
	ProjectActive               = "active"
	ProjectCompleted            = "completed"
)

// Task statuses.
const (
	TaskNotStarted = "not-started"
	TaskInProgress = "in-progress"
	TaskCompleted  = "completed"
)

// Verification request types. A task carries each at most once.
const (
	VerificationPhoto      = "photo"
	VerificationVideo      = "video"
	VerificationInspection = "inspection"
)

type Project struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Status         string    `json:"status"`
	CustomerName   string    `json:"customerName"`
	ContractorName string    `json:"contractorName"`
	ShortID        string    `json:"shortId"`
	CreatedDate    time.Time `json:"createdDate"`
}

// ProjectRef is the latest-project lookup result.
type ProjectRef struct {
	ID string `json:"id"`
}

type Task struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	Description          string     `json:"description"`
	Status               string     `json:"status"`
	StartDate            *time.Time `json:"startDate,omitempty"`
	DueDate              *time.Time `json:"dueDate,omitempty"`
	CompletedDate        *time.Time `json:"completedDate,omitempty"`
	IsMilestonePayment   bool       `json:"isMilestonePayment"`
	PaymentAmount        int64      `json:"paymentAmount,omitempty"` // minor units
	PaymentRequested     bool       `json:"paymentRequested,omitempty"`
	PaymentApproved      bool       `json:"paymentApproved,omitempty"`
	VerificationRequests []string   `json:"verificationRequests"`
	IsAdditional         bool       `json:"isAdditional"`
	AdditionalStatus     string     `json:"additionalStatus,omitempty"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Brand       string `json:"brand"`
	Price       int64  `json:"price"` // minor units
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
	IsPremium   bool   `json:"isPremium"`
	Quantity    int    `json:"quantity"`
}

type Material struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"` // minor units
	Quantity int    `json:"quantity"`
}

type Quote struct {
	ID             string     `json:"id"`
	Products       []Product  `json:"products"`
	Materials      []Material `json:"materials"`
	TotalLaborCost int64      `json:"totalLaborCost"` // minor units
	ProjectStatus  string     `json:"projectStatus"`
}

type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type Conversation struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"lastMessage,omitempty"`
}

type Message struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	SenderID    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments []string  `json:"attachments,omitempty"`
}

type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type ChangeOrder struct {
	ID          string `json:"id"`
	TaskID      string `json:"taskId"`
	Description string `json:"description"`
	CostDelta   int64  `json:"costDelta"` // minor units
	Status      string `json:"status"`
}

type VendorService struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"` // minor units
}

type MarketingPlan struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Budget   int64  `json:"budget"` // minor units
	Audience string `json:"audience"`
}

// UploadResult is returned by the multipart upload endpoint.
type UploadResult struct {
	URL string `json:"url"`
}
