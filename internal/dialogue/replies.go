package dialogue

import (
	"fmt"
	"strings"

	"imobot-backend/internal/domain"
)

const searchMenu = "How would you like to search?\n\n1️⃣ By serial/part number\n2️⃣ By vehicle and part name"

const (
	welcomeText         = "Welcome to IMOBOT! 🚗\n\nI can help you find spare parts. " + searchMenu
	searchMenuText      = searchMenu
	newSearchText       = "Let's start a new search!\n\n" + searchMenu
	askSerialText       = "🔍 Great! Please enter the serial number or part reference."
	askVehicleText      = "🚗 Perfect! Please tell me your vehicle details:\n- Brand (Toyota, Peugeot, etc.)\n- Model\n- Year"
	askPartText         = "🔧 Excellent! What spare part are you looking for?"
	reenterVehicleText  = "↩️ No problem! Please provide your vehicle details again:\n- Brand\n- Model\n- Year"
	orderContactText    = "Great! To process your order, please provide your contact information (phone and/or email):"
	askContactText      = "Please provide your phone number and/or email address so we can contact you when the part is available.\n\nExample: 0555123456 or email@example.com"
	resultsPromptText   = "Would you like to order one of these parts, or search for another one?"
	completedPromptText = "Is there anything else I can help you with? Say \"search\" to look for another part."
)

var (
	methodSuggestions  = []string{"Search by serial number", "Search by vehicle"}
	vehicleSuggestions = []string{"Toyota Corolla 2020", "Peugeot 308 2019", "Renault Clio 2018"}
	confirmSuggestions = []string{"Yes, correct", "No, let me re-enter"}
	partSuggestions    = []string{"Brake pads", "Oil filter", "Air filter", "Battery", "Alternator"}
	resultSuggestions  = []string{"Order now", "Search another part", "Contact support"}
	notifySuggestions  = []string{"Yes, I want to be notified", "Search another part"}
)

func confirmVehicleText(vehicle string) string {
	return fmt.Sprintf("✅ Got it! Your vehicle is:\n\n🚗 %s\n\nIs this correct?", vehicle)
}

func missingVehicleText(missing []string) string {
	return fmt.Sprintf("I still need the %s of your vehicle. Please provide these details.", strings.Join(missing, ", "))
}

func partNotFoundText(part, brand, model string) string {
	return fmt.Sprintf("❌ Sorry, I couldn't find %s for your %s %s.\n\n"+
		"📞 Would you like to leave your contact information? We'll notify you when it becomes available.",
		part, brand, model)
}

func serialNotFoundText(serial string) string {
	return fmt.Sprintf("❌ No part found with serial number: %s\n\n"+
		"📞 Would you like to leave your contact info? We'll help you find this part.", serial)
}

func serialInStockText(serial string, p domain.Product) string {
	return fmt.Sprintf("✅ Found part %s!\n\n📦 Product: %s\n💰 Price: %s\n📊 Stock: %d units\n\nWould you like to order this part?",
		serial, p.ProductName, price(p.SalesPrice), p.QuantityOnHand)
}

func serialOutOfStockText(serial string, p domain.Product) string {
	return fmt.Sprintf("⚠️ Part %s found but OUT OF STOCK.\n\n📦 Product: %s\n\nWould you like us to notify you when it's available?",
		serial, p.ProductName)
}

func contactSavedText(phone, email string) string {
	return fmt.Sprintf("✅ Thank you! We've saved your contact information.\n\n📞 Phone: %s\n📧 Email: %s\n\n"+
		"We'll contact you as soon as the part is available!\n\nIs there anything else I can help you with?",
		orNotProvided(phone), orNotProvided(email))
}

// resultsText describes a non-empty search result. Only the first
// MaxListedParts rows are listed.
func resultsText(results []domain.Product) string {
	if len(results) == 1 {
		p := results[0]
		if p.InStock() {
			return fmt.Sprintf("✅ Great news! I found %s (%s).\n\n📦 In stock: %d units\n💰 Price: %s\n\nWould you like to order this part?",
				p.ProductName, p.InternalReference, p.QuantityOnHand, price(p.SalesPrice))
		}
		return fmt.Sprintf("⚠️ I found %s (%s), but it's currently out of stock.\n\n"+
			"Would you like to leave your contact information? We'll notify you as soon as it's available.",
			p.ProductName, p.InternalReference)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I found %d matching parts:\n\n", len(results))
	for i, p := range firstN(results, MaxListedParts) {
		status := "❌ Out of stock"
		if p.InStock() {
			status = "✅ In stock"
		}
		fmt.Fprintf(&b, "%d. %s\n   Serial: %s\n   %s (%d units)\n   Price: %s\n\n",
			i+1, p.ProductName, p.InternalReference, status, p.QuantityOnHand, price(p.SalesPrice))
	}
	if len(results) > MaxListedParts {
		fmt.Fprintf(&b, "...and %d more.\n\n", len(results)-MaxListedParts)
	}
	b.WriteString("Which one would you like to order?")
	return b.String()
}

func price(v float64) string {
	return fmt.Sprintf("%.2f DZD", v)
}

func orNotProvided(s string) string {
	if s == "" {
		return "Not provided"
	}
	return s
}
