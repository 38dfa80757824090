package model

import "testing"

func TestOfferStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OfferStatus
		want     bool
	}{
		{OfferPending, OfferSent, true},
		{OfferPending, OfferAccepted, false},
		{OfferPending, OfferWithdrawn, true},
		{OfferSent, OfferAccepted, true},
		{OfferSent, OfferRejected, true},
		{OfferSent, OfferExpired, true},
		{OfferSent, OfferPending, false},
		{OfferSent, OfferSent, true},
		{OfferAccepted, OfferWithdrawn, false},
		{OfferRejected, OfferSent, false},
		{OfferWithdrawn, OfferPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%s -> %s = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
	if OfferStatus("DRAFT").Valid() {
		t.Fatal("unknown status accepted")
	}
}
