package enum

// ── Order lifecycle (CHECK constrained in DB) ──
//
// The strict machine is Preparing → Ready → Delivered. The admin status
// endpoint may set any of the three as an explicit correction override.

const (
	OrderStatusPreparing = "Preparing"
	OrderStatusReady     = "Ready"
	OrderStatusDelivered = "Delivered"
)

// ── Payment gateway status (CHECK constrained in DB) ──

const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
)

// ── Staff approval (CHECK constrained in DB) ──

const (
	StaffStatusPending  = "Pending"
	StaffStatusApproved = "Approved"
	StaffStatusDeclined = "Declined"
)

// ── Session roles (carried in JWT claims, no DB constraint) ──

const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleStudent = "student"
)

// ── Food categories (CHECK constrained in DB) ──

const (
	FoodCategoryFood  = "food"
	FoodCategoryDrink = "drink"
	FoodCategorySnack = "snack"
)

// ── Realtime event names ──

const (
	EventNewOrder     = "newOrder"
	EventOrderUpdated = "orderUpdated"
)
