package payments

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultStudentName = "Student"
	DefaultPaymentType = "general"
	DefaultChannel     = "online"
)

// Metadata keys. Each mirrored field is always written in both casings.
const (
	KeyStudentID          = "student_id"
	KeyStudentIDCamel     = "studentId"
	KeyStudentName        = "student_name"
	KeyStudentNameCamel   = "studentName"
	KeyParentName         = "parent_name"
	KeyParentNameCamel    = "parentName"
	KeyParentEmail        = "parent_email"
	KeyParentEmailCamel   = "parentEmail"
	KeyPaymentType        = "payment_type"
	KeyPaymentTypeCamel   = "paymentType"
	KeyPaymentChannel     = "payment_channel"
	KeyPaymentChannelCaml = "paymentChannel"
	KeyTotalPaid          = "total_paid"
	KeyTotalPaidCamel     = "totalPaid"
	KeySchoolFeePaid      = "school_fee_paid"
	KeySchoolFeePaidCamel = "schoolFeePaid"
	KeyLedgerPaymentID    = "ledger_payment_id"
	KeyLedgerPaymentIDCml = "ledgerPaymentId"

	KeyAccessGranted           = "accessGranted"
	KeyAccessGrantedAt         = "accessGrantedAt"
	KeyVerifiedAt              = "verifiedAt"
	KeyLastPaystackReference   = "lastPaystackReference"
	KeyLastVerificationAttempt = "lastVerificationAttempt"
	KeyTerm                    = "term"
	KeySession                 = "session"
	KeyClassID                 = "class_id"
	KeyClassIDCamel            = "classId"
	KeyClassName               = "class_name"
	KeyClassNameCamel          = "className"
)

// MirroredKeys lists every snake_case/camelCase pair kept in sync in the bag
var MirroredKeys = [][2]string{
	{KeyStudentID, KeyStudentIDCamel},
	{KeyStudentName, KeyStudentNameCamel},
	{KeyParentName, KeyParentNameCamel},
	{KeyParentEmail, KeyParentEmailCamel},
	{KeyPaymentType, KeyPaymentTypeCamel},
	{KeyPaymentChannel, KeyPaymentChannelCaml},
	{KeyTotalPaid, KeyTotalPaidCamel},
	{KeySchoolFeePaid, KeySchoolFeePaidCamel},
	{KeyLedgerPaymentID, KeyLedgerPaymentIDCml},
	{KeyClassID, KeyClassIDCamel},
	{KeyClassName, KeyClassNameCamel},
}

var (
	studentIDKeys   = []string{KeyStudentID, KeyStudentIDCamel, "studentID", "student"}
	studentNameKeys = []string{KeyStudentName, KeyStudentNameCamel, "student_full_name", "studentFullName"}
	parentNameKeys  = []string{KeyParentName, KeyParentNameCamel, "guardian_name", "guardianName", "customer_name", "customerName"}
	parentEmailKeys = []string{KeyParentEmail, KeyParentEmailCamel, "guardian_email", "guardianEmail", "customer_email", "customerEmail", "email"}
	paymentTypeKeys = []string{KeyPaymentType, KeyPaymentTypeCamel, "fee_type", "feeType"}
	channelKeys     = []string{KeyPaymentChannel, KeyPaymentChannelCaml, "channel"}
	termKeys        = []string{KeyTerm, "academic_term", "academicTerm"}
	sessionKeys     = []string{KeySession, "academic_session", "academicSession"}
	classIDKeys     = []string{KeyClassID, KeyClassIDCamel}
	classNameKeys   = []string{KeyClassName, KeyClassNameCamel}
	ledgerIDKeys    = []string{KeyLedgerPaymentIDCml, KeyLedgerPaymentID}
)

// Canonical is the resolved, sanitized view of a metadata bag
type Canonical struct {
	StudentID   string
	StudentName string
	ParentName  string
	ParentEmail string
	PaymentType string
	Channel     string
	Term        string
	Session     string
	ClassID     string
	ClassName   string
}

// HasStudent reports whether the payment is tied to a student
func (c Canonical) HasStudent() bool {
	return c.StudentID != ""
}

// Normalize resolves the canonical fields from an arbitrarily shaped bag.
// Blank values never win over later aliases.
func Normalize(bag map[string]interface{}) Canonical {
	bag = flattenCustomFields(bag)

	c := Canonical{
		StudentID:   firstString(bag, studentIDKeys...),
		StudentName: firstString(bag, studentNameKeys...),
		ParentName:  firstString(bag, parentNameKeys...),
		ParentEmail: strings.ToLower(firstString(bag, parentEmailKeys...)),
		PaymentType: firstString(bag, paymentTypeKeys...),
		Channel:     firstString(bag, channelKeys...),
		Term:        firstString(bag, termKeys...),
		Session:     firstString(bag, sessionKeys...),
		ClassID:     firstString(bag, classIDKeys...),
		ClassName:   firstString(bag, classNameKeys...),
	}
	return c.withDefaults()
}

func (c Canonical) withDefaults() Canonical {
	if c.StudentName == "" {
		c.StudentName = DefaultStudentName
	}
	if c.PaymentType == "" {
		c.PaymentType = DefaultPaymentType
	}
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	return c
}

// Apply writes every resolved field into bag in both casings. When no student
// was resolved the student id keys are removed rather than left blank.
func (c Canonical) Apply(bag map[string]interface{}) {
	if c.StudentID != "" {
		setMirrored(bag, KeyStudentID, KeyStudentIDCamel, c.StudentID)
	} else {
		delete(bag, KeyStudentID)
		delete(bag, KeyStudentIDCamel)
	}
	setMirrored(bag, KeyStudentName, KeyStudentNameCamel, c.StudentName)
	setMirrored(bag, KeyPaymentType, KeyPaymentTypeCamel, c.PaymentType)
	setMirrored(bag, KeyPaymentChannel, KeyPaymentChannelCaml, c.Channel)
	if c.ParentName != "" {
		setMirrored(bag, KeyParentName, KeyParentNameCamel, c.ParentName)
	}
	if c.ParentEmail != "" {
		setMirrored(bag, KeyParentEmail, KeyParentEmailCamel, c.ParentEmail)
	}
	if c.ClassID != "" {
		setMirrored(bag, KeyClassID, KeyClassIDCamel, c.ClassID)
	}
	if c.ClassName != "" {
		setMirrored(bag, KeyClassName, KeyClassNameCamel, c.ClassName)
	}
	if c.Term != "" {
		bag[KeyTerm] = c.Term
	}
	if c.Session != "" {
		bag[KeySession] = c.Session
	}
}

// Merge returns c with blank or defaulted fields filled from other
func (c Canonical) Merge(other Canonical) Canonical {
	if c.StudentID == "" {
		c.StudentID = other.StudentID
	}
	if c.StudentName == DefaultStudentName && other.StudentName != "" {
		c.StudentName = other.StudentName
	}
	if c.ParentName == "" {
		c.ParentName = other.ParentName
	}
	if c.ParentEmail == "" {
		c.ParentEmail = other.ParentEmail
	}
	if c.PaymentType == DefaultPaymentType && other.PaymentType != "" {
		c.PaymentType = other.PaymentType
	}
	if c.Channel == DefaultChannel && other.Channel != "" {
		c.Channel = other.Channel
	}
	if c.Term == "" {
		c.Term = other.Term
	}
	if c.Session == "" {
		c.Session = other.Session
	}
	if c.ClassID == "" {
		c.ClassID = other.ClassID
	}
	if c.ClassName == "" {
		c.ClassName = other.ClassName
	}
	return c
}

// LedgerPaymentID returns the ledger guard stamped in a bag, if any
func LedgerPaymentID(bag map[string]interface{}) string {
	return firstString(bag, ledgerIDKeys...)
}

// StampLedgerPaymentID writes the ledger guard in both casings
func StampLedgerPaymentID(bag map[string]interface{}, id string) {
	setMirrored(bag, KeyLedgerPaymentID, KeyLedgerPaymentIDCml, id)
}

// StampPaid records the paid flags and totals in both casings
func StampPaid(bag map[string]interface{}, totalPaid float64) {
	setMirrored(bag, KeyTotalPaid, KeyTotalPaidCamel, totalPaid)
	setMirrored(bag, KeySchoolFeePaid, KeySchoolFeePaidCamel, true)
}

// MirrorCasing copies any one-sided mirrored key to its counterpart.
// Existing snake_case values win when both sides are present and differ.
func MirrorCasing(bag map[string]interface{}) {
	for _, pair := range MirroredKeys {
		snake, hasSnake := bag[pair[0]]
		camel, hasCamel := bag[pair[1]]
		switch {
		case hasSnake:
			bag[pair[1]] = snake
		case hasCamel:
			bag[pair[0]] = camel
		}
	}
}

// DecodeMetadata accepts the shapes the gateway and clients send: an object,
// a JSON-encoded string of an object, or nothing.
func DecodeMetadata(raw json.RawMessage) map[string]interface{} {
	out := map[string]interface{}{}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return out
	}

	if strings.HasPrefix(trimmed, `"`) {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return out
		}
		encoded = strings.TrimSpace(encoded)
		if encoded == "" {
			return out
		}
		raw = json.RawMessage(encoded)
	}

	var bag map[string]interface{}
	if err := json.Unmarshal(raw, &bag); err != nil || bag == nil {
		return out
	}
	return bag
}

// CloneBag returns a shallow copy of bag, never nil
func CloneBag(bag map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(bag))
	for k, v := range bag {
		out[k] = v
	}
	return out
}

// flattenCustomFields lifts Paystack custom_fields entries into top-level keys
// without overwriting keys already present.
func flattenCustomFields(bag map[string]interface{}) map[string]interface{} {
	fields, ok := bag["custom_fields"].([]interface{})
	if !ok || len(fields) == 0 {
		return bag
	}
	out := CloneBag(bag)
	for _, f := range fields {
		entry, ok := f.(map[string]interface{})
		if !ok {
			continue
		}
		name, _ := entry["variable_name"].(string)
		if name == "" {
			continue
		}
		if existing := stringValue(out[name]); existing != "" {
			continue
		}
		out[name] = entry["value"]
	}
	return out
}

func setMirrored(bag map[string]interface{}, snake, camel string, value interface{}) {
	bag[snake] = value
	bag[camel] = value
}

func firstString(bag map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		if v := SanitizeString(stringValue(bag[k])); v != "" {
			return v
		}
	}
	return ""
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool, map[string]interface{}, []interface{}:
		return ""
	default:
		return fmt.Sprint(val)
	}
}
