package schema

import (
	"errors"
	"strings"
	"testing"
)

type profileObtainSchema struct {
	TokenObtainPairInputSchema
}

type profileOutput struct {
	Refresh   string `json:"refresh"`
	Access    string `json:"access"`
	FirstName string `json:"first_name"`
}

func (profileObtainSchema) ResponseSchema() any { return profileOutput{} }

func (profileObtainSchema) ToResponse(in Input, id Identity, tokens Tokens) (any, error) {
	first, _ := id.Attributes["first_name"].(string)
	return profileOutput{Refresh: tokens.Refresh, Access: tokens.Access, FirstName: first}, nil
}

// invalidTokenSchema is an input schema whose inputs carry no token.
type invalidTokenSchema struct{}

type whateverInput struct {
	Whatever string `json:"whatever"`
}

func (*whateverInput) Validate() error { return nil }

func (invalidTokenSchema) NewInput() Input { return &whateverInput{} }

func TestCheckDefaults(t *testing.T) {
	set, err := Check(NewRegistry(), nil)
	if err != nil {
		t.Fatalf("check defaults: %v", err)
	}
	for _, slot := range Slots() {
		if set.Input(slot) == nil {
			t.Fatalf("slot %s not resolved", slot)
		}
	}
	if set.Obtain(SlotObtainPair) == nil || set.Obtain(SlotObtainSliding) == nil {
		t.Fatal("obtain slots not resolved")
	}
	if set.Obtain(SlotVerify) != nil {
		t.Fatal("verify slot must not resolve as obtain")
	}
}

func TestCheckCustomObtainSchema(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("profile", profileObtainSchema{}); err != nil {
		t.Fatalf("register: %v", err)
	}
	set, err := Check(r, map[Slot]string{SlotObtainPair: "profile"})
	if err != nil {
		t.Fatalf("check: %v", err)
	}

	in := set.Obtain(SlotObtainPair).NewInput().(*ObtainPairInput)
	in.Username, in.Password = "john", "pw"
	resp, err := set.Obtain(SlotObtainPair).ToResponse(in,
		Identity{UserID: "1", Attributes: map[string]any{"first_name": "John"}},
		Tokens{Access: "a", Refresh: "r"})
	if err != nil {
		t.Fatalf("to response: %v", err)
	}
	out := resp.(profileOutput)
	if out.FirstName != "John" || out.Access != "a" || out.Refresh != "r" {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestCheckContractMismatchNamesSlotAndContract(t *testing.T) {
	cases := []struct {
		slot      Slot
		component any
		contract  string
	}{
		{SlotObtainPair, TokenRefreshInputSchema{}, ContractObtain},
		{SlotObtainSliding, invalidTokenSchema{}, ContractObtain},
		{SlotRefreshPair, invalidTokenSchema{}, ContractToken},
		{SlotRefreshSliding, struct{}{}, ContractToken},
		{SlotVerify, invalidTokenSchema{}, ContractToken},
		{SlotBlacklist, invalidTokenSchema{}, ContractToken},
	}
	for _, tc := range cases {
		r := NewRegistry()
		if err := r.Register("bad", tc.component); err != nil {
			t.Fatalf("register: %v", err)
		}
		_, err := Check(r, map[Slot]string{tc.slot: "bad"})
		if !errors.Is(err, ErrContractMismatch) {
			t.Fatalf("%s: expected ErrContractMismatch, got %v", tc.slot, err)
		}
		var ce *ContractError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: expected *ContractError", tc.slot)
		}
		if ce.Slot != tc.slot || ce.Contract != tc.contract {
			t.Fatalf("%s: unexpected error fields %+v", tc.slot, ce)
		}
		want := string(tc.slot) + " type must implement " + tc.contract
		if !strings.HasPrefix(err.Error(), want) {
			t.Fatalf("%s: unexpected message %q", tc.slot, err.Error())
		}
	}
}

func TestCheckUnresolvableName(t *testing.T) {
	_, err := Check(NewRegistry(), map[Slot]string{SlotVerify: "missing.Schema"})
	var ce *ContractError
	if !errors.As(err, &ce) || ce.Slot != SlotVerify || ce.Component != "missing.Schema" {
		t.Fatalf("expected contract error for unresolvable name, got %v", err)
	}
}

func TestCheckRejectsUnknownSlot(t *testing.T) {
	if _, err := Check(NewRegistry(), map[Slot]string{"TOKEN_UNKNOWN": "x"}); err == nil {
		t.Fatal("expected unknown slot to be rejected")
	}
}

func TestDefaultInputsValidate(t *testing.T) {
	set, err := Check(NewRegistry(), nil)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	in := set.Input(SlotVerify).NewInput()
	if err := in.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected empty token to fail validation, got %v", err)
	}
	var ve *ValidationError
	if !errors.As(in.Validate(), &ve) || ve.Field != "token" {
		t.Fatalf("expected token field error, got %v", in.Validate())
	}

	obtain := set.Input(SlotObtainPair).NewInput().(*ObtainPairInput)
	obtain.Username = "u"
	if err := obtain.Validate(); !errors.As(err, &ve) || ve.Field != "password" {
		t.Fatalf("expected password field error, got %v", err)
	}
}
