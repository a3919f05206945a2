package rows

import (
	"reflect"
	"testing"

	"giftmatch/pkg/domain"
)

func TestParseDonor(t *testing.T) {
	row := Row{
		"Donor #":      "7",
		"First":        "Mike",
		"Last":         "Elkins",
		"Email":        "mike@example.com",
		"Pledge units": "5x20",
		"Comments":     "prefers north side",
	}
	d, err := ParseDonor(row)
	if err != nil {
		t.Fatalf("ParseDonor: %v", err)
	}
	want := domain.Donor{ID: 7, First: "Mike", Last: "Elkins", Email: "mike@example.com", Pledges: 5, Comments: "prefers north side"}
	if d != want {
		t.Fatalf("got %+v, want %+v", d, want)
	}
}

func TestParseDonorBadPledge(t *testing.T) {
	row := Row{"Donor #": "7", "First": "a", "Last": "b", "Email": "c", "Pledge units": "none", "Comments": ""}
	if _, err := ParseDonor(row); err == nil {
		t.Fatal("expected an error for a non-numeric pledge")
	}
}

func TestParseRecipientSeparateColumns(t *testing.T) {
	row := Row{
		"Recipient #":      "31",
		"Valid":            "TRUE",
		"Status":           "employee",
		"Org Email":        " Pat.Smith@Example.ORG ",
		"Name":             "Pat Smith",
		"Address":          "12 Oak St, Springfield",
		"Home Email":       "pat@home.net",
		"Store":            "Northside",
		"Phone":            "555-0100",
		"No physical card": "X",
		"Comments":         "",
	}
	r, err := ParseRecipient(row)
	if err != nil {
		t.Fatalf("ParseRecipient: %v", err)
	}
	if r.ID != 31 || r.Name != "Pat Smith" || r.Address != "12 Oak St, Springfield" {
		t.Fatalf("unexpected identity fields: %+v", r)
	}
	if r.OrgEmail != "pat.smith@example.org" {
		t.Fatalf("org email not folded: %q", r.OrgEmail)
	}
	if !r.NoPhysicalCard {
		t.Fatal("mark not parsed")
	}
	if !r.IsValid() {
		t.Fatal("TRUE should be valid")
	}
}

func TestParseRecipientCombinedNameAddress(t *testing.T) {
	row := Row{
		"Recipient #":      "4",
		"Valid":            "true",
		"Status":           "",
		"Org Email":        "",
		"Name and Address": "Lee Wong, 9 Elm Ave, Apt 2",
		"Home Email":       "",
		"Store":            "",
		"Phone":            "",
		"No physical card": "",
		"Comments":         "",
	}
	r, err := ParseRecipient(row)
	if err != nil {
		t.Fatalf("ParseRecipient: %v", err)
	}
	if r.Name != "Lee Wong" || r.Address != "9 Elm Ave, Apt 2" {
		t.Fatalf("combined column split wrong: name=%q address=%q", r.Name, r.Address)
	}
}

func TestParseDonation(t *testing.T) {
	d, err := ParseDonation(Row{"Donor": "2", "Recipient": "31", "Date": "10/17/2025"})
	if err != nil {
		t.Fatalf("ParseDonation: %v", err)
	}
	if d.Donor != 2 || d.Recipient != 31 {
		t.Fatalf("unexpected ids: %+v", d)
	}
	if !d.Date.Known || d.Date.String() != "2025-10-17" {
		t.Fatalf("unexpected date: %+v", d.Date)
	}

	d, err = ParseDonation(Row{"Donor": "2", "Recipient": "31", "Date": ""})
	if err != nil {
		t.Fatalf("ParseDonation blank date: %v", err)
	}
	if d.Date.Known {
		t.Fatal("blank date should be unknown")
	}
}

func TestInlineDonationsSlotOrder(t *testing.T) {
	row := Row{
		"Recipient #": "5",
		"Donor 2":     "11",
		"Donor 1":     "7",
		"Donor 10":    "3",
		"Donor 3":     "",
		"Donor count": "2",
	}
	donors, err := InlineDonations(row)
	if err != nil {
		t.Fatalf("InlineDonations: %v", err)
	}
	if !reflect.DeepEqual(donors, []int{7, 11, 3}) {
		t.Fatalf("got %v, want [7 11 3]", donors)
	}
}

func TestInlineDonationsBadValue(t *testing.T) {
	if _, err := InlineDonations(Row{"Donor 1": "seven"}); err == nil {
		t.Fatal("expected an error for a non-numeric donor id")
	}
}
