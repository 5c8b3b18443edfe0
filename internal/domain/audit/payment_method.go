package audit

// PaymentMethod classifies how a sale was paid for. The category is assigned
// once when the record is loaded and is only ever read during reconciliation.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodQRClick PaymentMethod = "qr_click"
	PaymentMethodQRPayme PaymentMethod = "qr_payme"
	PaymentMethodQRUzum  PaymentMethod = "qr_uzum"
	PaymentMethodVIP     PaymentMethod = "vip"
	PaymentMethodTest    PaymentMethod = "test"
	PaymentMethodUnknown PaymentMethod = "unknown"
)

// String returns the string representation
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid checks if the payment method is one of the known categories
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard,
		PaymentMethodQRClick, PaymentMethodQRPayme, PaymentMethodQRUzum,
		PaymentMethodVIP, PaymentMethodTest, PaymentMethodUnknown:
		return true
	}
	return false
}

// AllPaymentMethods returns all known payment methods
func AllPaymentMethods() []PaymentMethod {
	return []PaymentMethod{
		PaymentMethodCash,
		PaymentMethodCard,
		PaymentMethodQRClick,
		PaymentMethodQRPayme,
		PaymentMethodQRUzum,
		PaymentMethodVIP,
		PaymentMethodTest,
		PaymentMethodUnknown,
	}
}

// IsFiscal reports whether sales in this category are expected to have a
// fiscal receipt (cash and card go through the register).
func (m PaymentMethod) IsFiscal() bool {
	return m == PaymentMethodCash || m == PaymentMethodCard
}

// IsQR reports whether the category maps to a QR payment service
func (m PaymentMethod) IsQR() bool {
	switch m {
	case PaymentMethodQRClick, PaymentMethodQRPayme, PaymentMethodQRUzum:
		return true
	}
	return false
}

// QRService returns the payment-service name for QR categories, or "" for
// everything else.
func (m PaymentMethod) QRService() string {
	switch m {
	case PaymentMethodQRClick:
		return "click"
	case PaymentMethodQRPayme:
		return "payme"
	case PaymentMethodQRUzum:
		return "uzum"
	}
	return ""
}

// PaymentMethodForService maps a QR payment-service name back to its payment
// method category. Unknown services map to PaymentMethodUnknown.
func PaymentMethodForService(service string) PaymentMethod {
	switch service {
	case "click":
		return PaymentMethodQRClick
	case "payme":
		return PaymentMethodQRPayme
	case "uzum":
		return PaymentMethodQRUzum
	}
	return PaymentMethodUnknown
}
