package storefront

import (
	"go.uber.org/zap"
)

// Level is the severity of a user-facing notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notifier shows short messages to the shopper.
type Notifier interface {
	Notify(level Level, msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level Level, msg string)

// Notify calls f.
func (f NotifierFunc) Notify(level Level, msg string) { f(level, msg) }

type nopNotifier struct{}

func (nopNotifier) Notify(Level, string) {}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	lg *zap.Logger
}

// NewLogNotifier returns a Notifier that logs through lg.
func NewLogNotifier(lg *zap.Logger) *LogNotifier {
	return &LogNotifier{lg: lg}
}

// Notify logs msg at the zap level matching level.
func (n *LogNotifier) Notify(level Level, msg string) {
	f := zap.Stringer("level", level)
	switch level {
	case LevelError:
		n.lg.Error(msg, f)
	case LevelWarning:
		n.lg.Warn(msg, f)
	default:
		n.lg.Info(msg, f)
	}
}

// Notification messages shown by the storefront.
const (
	msgInvalidQuantity = "Please enter a valid quantity (1 or more)."
	msgProductNotFound = "Product not found in catalog."
	msgQuantityCorrect = "Quantity must be at least 1."
	msgSaveFailed      = "Could not save cart data. Please check storage settings."
	msgCorruptCart     = "Corrupted cart data found. Your cart has been reset."
	msgCatalogFailed   = "Error loading product data from server. Please try again later."
	msgEmptyCart       = "Your cart is empty. Please add items before checking out."
	msgOrderSent       = "Your order request has been sent to WhatsApp!"
	msgOpenLinkFailed  = "Could not open WhatsApp. Please use the link shown instead."
	msgAddedFormat     = "%dx %s added to cart!"
	msgRemovedFormat   = "%s removed from cart."
	unknownItemName    = "Item"

	// Both take MaxQuantity.
	msgQuantityCappedFormat = "Quantity cannot be more than %d."
	msgQuantityLimitFormat  = "You can have at most %d of an item in your cart."
)
