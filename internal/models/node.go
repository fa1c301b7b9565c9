package models

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/desertthunder/hoardsync/internal/shared"
)

// Kind is the closed set of node data types accepted by the target API.
type Kind int

const (
	KindPlain Kind = iota
	KindDate
	KindURL
	KindBoolean
	KindFile
	KindReference
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindDate:
		return "date"
	case KindURL:
		return "url"
	case KindBoolean:
		return "boolean"
	case KindFile:
		return "file"
	case KindReference:
		return "reference"
	default:
		return ""
	}
}

var nodeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{7,16}$`)

// ValidateNodeID checks the shape of supertag, attribute, and reference ids.
func ValidateNodeID(id string) error {
	if !nodeIDPattern.MatchString(id) {
		return fmt.Errorf("%w: id %q must be 7-16 characters of [A-Za-z0-9_-]", shared.ErrInvalidNode, id)
	}
	return nil
}

// Value is a node that may appear as the value of a [Field].
type Value interface {
	json.Marshaler
	Validator
	Kind() Kind
	isValue()
}

// Child is anything that may appear under a [PlainNode]: a [Field] or a non-boolean node.
type Child interface {
	json.Marshaler
	Validator
	isChild()
}

// Supertag classifies a node.
type Supertag struct {
	ID string `json:"id"`
}

// PlainNode is a text node, optionally tagged and with children. A Document submitted to the target is a PlainNode.
type PlainNode struct {
	Name        string
	Description string
	Supertags   []Supertag
	Children    []Child
}

// Text returns a plain text node.
func Text(name string) *PlainNode {
	return &PlainNode{Name: name}
}

// NewDocument builds a tagged plain node and validates the whole tree.
func NewDocument(name string, supertagIDs []string, children ...Child) (*PlainNode, error) {
	n := &PlainNode{Name: name, Children: children}
	for _, id := range supertagIDs {
		n.Supertags = append(n.Supertags, Supertag{ID: id})
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *PlainNode) Kind() Kind { return KindPlain }
func (n *PlainNode) isValue()   {}
func (n *PlainNode) isChild()   {}

// Validate checks supertag ids and every descendant.
func (n *PlainNode) Validate() error {
	for _, tag := range n.Supertags {
		if err := ValidateNodeID(tag.ID); err != nil {
			return fmt.Errorf("supertag: %w", err)
		}
	}
	for i, c := range n.Children {
		if c == nil {
			return fmt.Errorf("%w: child %d of %q is nil", shared.ErrInvalidNode, i, n.Name)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (n *PlainNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string     `json:"name"`
		Description string     `json:"description,omitempty"`
		Supertags   []Supertag `json:"supertags,omitempty"`
		Children    []Child    `json:"children,omitempty"`
	}{n.Name, n.Description, n.Supertags, n.Children})
}

// DateNode holds a date or timestamp string.
type DateNode struct {
	Date string
}

// Date returns a date node.
func Date(s string) *DateNode { return &DateNode{Date: s} }

func (n *DateNode) Kind() Kind      { return KindDate }
func (n *DateNode) isValue()        {}
func (n *DateNode) isChild()        {}
func (n *DateNode) Validate() error { return nil }

func (n *DateNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DataType string `json:"dataType"`
		Name     string `json:"name"`
	}{KindDate.String(), n.Date})
}

// URLNode holds a link. An empty URL is allowed so fixed-schema fields can be emitted blank.
type URLNode struct {
	URL string
}

// URL returns a URL node.
func URL(u string) *URLNode { return &URLNode{URL: u} }

func (n *URLNode) Kind() Kind      { return KindURL }
func (n *URLNode) isValue()        {}
func (n *URLNode) isChild()        {}
func (n *URLNode) Validate() error { return nil }

func (n *URLNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DataType string `json:"dataType"`
		Name     string `json:"name"`
	}{KindURL.String(), n.URL})
}

// BooleanNode is a checkbox. It is only valid as a field value.
type BooleanNode struct {
	Checked bool
}

// Bool returns a checkbox node.
func Bool(v bool) *BooleanNode { return &BooleanNode{Checked: v} }

func (n *BooleanNode) Kind() Kind      { return KindBoolean }
func (n *BooleanNode) isValue()        {}
func (n *BooleanNode) Validate() error { return nil }

func (n *BooleanNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DataType string `json:"dataType"`
		Value    bool   `json:"value"`
	}{KindBoolean.String(), n.Checked})
}

// FileNode uploads a file inline.
type FileNode struct {
	Data        []byte
	ContentType string
	Filename    string
}

// File returns a validated file node.
func File(data []byte, contentType, filename string) (*FileNode, error) {
	n := &FileNode{Data: data, ContentType: contentType, Filename: filename}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *FileNode) Kind() Kind { return KindFile }
func (n *FileNode) isValue()   {}
func (n *FileNode) isChild()   {}

func (n *FileNode) Validate() error {
	if n.ContentType == "" || n.Filename == "" {
		return fmt.Errorf("%w: file node requires content type and filename", shared.ErrInvalidNode)
	}
	return nil
}

func (n *FileNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DataType    string `json:"dataType"`
		File        string `json:"file"`
		ContentType string `json:"contentType"`
		Filename    string `json:"filename"`
	}{KindFile.String(), base64.StdEncoding.EncodeToString(n.Data), n.ContentType, n.Filename})
}

// ReferenceNode points at an existing node by id.
type ReferenceNode struct {
	ID string
}

// Reference returns a validated reference node.
func Reference(id string) (*ReferenceNode, error) {
	n := &ReferenceNode{ID: id}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *ReferenceNode) Kind() Kind      { return KindReference }
func (n *ReferenceNode) isValue()        {}
func (n *ReferenceNode) isChild()        {}
func (n *ReferenceNode) Validate() error { return ValidateNodeID(n.ID) }

func (n *ReferenceNode) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DataType string `json:"dataType"`
		ID       string `json:"id"`
	}{KindReference.String(), n.ID})
}

// Field assigns values to a supertag attribute.
type Field struct {
	AttributeID string
	Values      []Value
}

// NewField returns a validated field.
func NewField(attributeID string, values ...Value) (*Field, error) {
	f := &Field{AttributeID: attributeID, Values: values}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Field) isChild() {}

func (f *Field) Validate() error {
	if err := ValidateNodeID(f.AttributeID); err != nil {
		return fmt.Errorf("field attribute: %w", err)
	}
	for i, v := range f.Values {
		if v == nil {
			return fmt.Errorf("%w: value %d of field %s is nil", shared.ErrInvalidNode, i, f.AttributeID)
		}
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string  `json:"type"`
		AttributeID string  `json:"attributeId"`
		Children    []Value `json:"children"`
	}{"field", f.AttributeID, f.Values})
}
