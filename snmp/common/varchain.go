package common

import (
	"iter"
)

// Variable is one variable binding: an object identifier and its encoded value.
// A Variable obtained from a message chain belongs to that message; use Clone to keep it
// after the message is released.
type Variable struct {
	name OID
	tag  byte
	data []byte
	next *Variable
}

// NewVariable returns a detached variable binding. The name and data are copied.
func NewVariable(name OID, tag byte, data []byte) *Variable {
	return &Variable{name: name.Clone(), tag: tag, data: copyBytes(data)}
}

func (v *Variable) Name() OID { return v.name.Clone() }

// Tag is the wire tag of the value.
func (v *Variable) Tag() byte { return v.tag }

// Data returns a copy of the encoded value content.
func (v *Variable) Data() []byte { return copyBytes(v.data) }

// Value decodes the bound value.
func (v *Variable) Value() (*TypedValue, error) {
	return Decode(v.tag, v.data)
}

// Clone returns a detached copy that does not link to the rest of the chain.
func (v *Variable) Clone() *Variable {
	return NewVariable(v.name, v.tag, v.data)
}

func (v *Variable) String() string {
	tv, err := v.Value()
	if err != nil {
		return v.name.String() + " = <" + err.Error() + ">"
	}
	return v.name.String() + " = " + tv.String()
}

// VarChain is the ordered, possibly empty, list of variables carried by a message.
type VarChain struct {
	head *Variable
	tail *Variable
	n    int
}

func (c *VarChain) append(v *Variable) {
	v.next = nil
	if c.tail == nil {
		c.head = v
	} else {
		c.tail.next = v
	}
	c.tail = v
	c.n++
}

// All walks the chain from its head. Every call starts a new walk.
func (c *VarChain) All() iter.Seq[*Variable] {
	return func(yield func(*Variable) bool) {
		for v := c.head; v != nil; v = v.next {
			if !yield(v) {
				return
			}
		}
	}
}

func (c *VarChain) Len() int { return c.n }

// First returns the head of the chain, or nil when the chain is empty.
func (c *VarChain) First() *Variable { return c.head }

// Clone deep copies the chain.
func (c *VarChain) Clone() *VarChain {
	cc := &VarChain{}
	for v := range c.All() {
		cc.append(v.Clone())
	}
	return cc
}
