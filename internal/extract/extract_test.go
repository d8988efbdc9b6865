package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVehicle(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		brand string
		model string
		year  string
	}{
		{"full", "Toyota Corolla 2020", "Toyota", "Corolla", "2020"},
		{"lowercase", "i drive a peugeot 308 from 2019", "Peugeot", "308", "2019"},
		{"brand only", "It's a Renault", "Renault", "", ""},
		{"year only", "made in 1998", "", "", "1998"},
		{"year out of range", "model 2150", "", "", ""},
		{"nothing", "brake pads please", "", "", ""},
		{"first listed brand wins", "kia or toyota yaris", "Toyota", "Yaris", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Vehicle(tt.text)
			assert.Equal(t, tt.brand, v.Brand)
			assert.Equal(t, tt.model, v.Model)
			assert.Equal(t, tt.year, v.Year)
		})
	}
}

func TestContact(t *testing.T) {
	c := Contact("call me on 0555123456 or mail karim@example.dz")
	assert.Equal(t, "0555123456", c.Phone)
	assert.Equal(t, "karim@example.dz", c.Email)
	assert.False(t, c.Empty())

	c = Contact("+213661234567")
	assert.Equal(t, "+213661234567", c.Phone)
	assert.Empty(t, c.Email)

	// landline prefix 02 is not a mobile number
	c = Contact("021234567890")
	assert.Empty(t, c.Phone)

	assert.True(t, Contact("no thanks").Empty())
}
