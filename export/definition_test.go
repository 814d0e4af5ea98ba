package export

import (
	"reflect"
	"testing"
)

type greeter interface {
	Greet() string
}

type greeterImpl struct{}

func (greeterImpl) Greet() string { return "hello" }

type notAGreeter struct{}

var greeterType = reflect.TypeOf((*greeter)(nil)).Elem()

func TestValidateRejectsUnknownGenericFlavour(t *testing.T) {
	def := ServiceDefinition{InterfaceName: "demo.Greeter", Generic: "xml", Reference: greeterImpl{}}
	if err := def.validate(); err == nil {
		t.Fatal("want a configuration error for an unknown generic flavour")
	}
}

func TestValidateAcceptsKnownGenericFlavours(t *testing.T) {
	for _, flavour := range []string{"", "true", "nativejava", "bean"} {
		def := ServiceDefinition{InterfaceName: "demo.Greeter", Generic: flavour, Reference: greeterImpl{}}
		if flavour != "" {
			// a generic service carries no concrete reference
			def.Reference = nil
		}
		if err := def.validate(); err != nil {
			t.Fatalf("flavour %q: want no error, got %v", flavour, err)
		}
	}
}

func TestValidateRejectsLocalNotImplementingInterface(t *testing.T) {
	def := ServiceDefinition{
		InterfaceName: "demo.Greeter",
		Reference:     greeterImpl{},
		InterfaceType: greeterType,
		Local:         notAGreeter{},
	}
	if err := def.validate(); err == nil {
		t.Fatal("want a configuration error when the local class doesn't implement the interface")
	}
}

func TestValidateRejectsStubNotImplementingInterface(t *testing.T) {
	def := ServiceDefinition{
		InterfaceName: "demo.Greeter",
		Reference:     greeterImpl{},
		InterfaceType: greeterType,
		Stub:          notAGreeter{},
	}
	if err := def.validate(); err == nil {
		t.Fatal("want a configuration error when the stub class doesn't implement the interface")
	}
}

func TestValidateAcceptsConformingLocalAndStub(t *testing.T) {
	def := ServiceDefinition{
		InterfaceName: "demo.Greeter",
		Reference:     greeterImpl{},
		InterfaceType: greeterType,
		Local:         greeterImpl{},
		Stub:          greeterImpl{},
	}
	if err := def.validate(); err != nil {
		t.Fatalf("want no error, got %v", err)
	}
}
