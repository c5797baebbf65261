package menu

var backToMain = Button{ID: "back_main_menu", Title: "Back to Main ⬅️"}

func englishScreens() *Screens {
	return &Screens{
		MainMenu: Screen{
			Text: "🎉 Welcome to KAAPAV Fashion Jewellery! 👋",
			Body: "What can we assist you with today? Select an option below to get started:",
			Buttons: []Button{
				{ID: "jewellery_categories", Title: "Browse Jewellery 💎"},
				{ID: "chat_with_us", Title: "Chat with Us! 💬"},
				{ID: "offers_more", Title: "Offers 🎉 & More"},
			},
		},
		JewelleryMenu: Screen{
			Text: "💎 Explore Our Jewellery\n\n• Website: {website}\n• WhatsApp Catalogue: {whatsappCatalog}",
			Body: "Browse Jewellery, choose:",
			Buttons: []Button{
				{ID: "open_website_browse", Title: "Browse Jewellery 💎"},
				{ID: "open_wa_catalog", Title: "WA Catalogue"},
				backToMain,
			},
		},
		OffersMenu: Screen{
			Body: "Current Offers 🎉 & Orders, choose:",
			Buttons: []Button{
				{ID: "current_offers", Title: "Offers 🎉 & More"},
				{ID: "payment_orders", Title: "Pay & Orders 💳"},
				backToMain,
			},
		},
		CurrentOffers: Screen{
			Text: "✨ Flat 50% OFF on All Jewellery\n🚚 Free Shipping on Orders Above ₹499\n🛍️ Bestsellers: {offersBestsellers}",
			Body: "Offers, actions:",
			Buttons: []Button{
				{ID: "shop_now", Title: "Shop Now 🛒"},
				{ID: "back_offers_menu", Title: "Back to Offers ⬅️"},
				backToMain,
			},
		},
		PaymentMenu: Screen{
			Text: "💳 Proceed to Payment",
			Body: "Payment & Orders, choose:",
			Buttons: []Button{
				{ID: "pay_via_upi", Title: "Pay via UPI"},
				{ID: "pay_via_card", Title: "Pay via Card"},
				{ID: "track_order", Title: "Track Order 📦"},
			},
		},
		ChatMenu: Screen{
			Text: "💬 Chat with us:",
			Body: "Need more help?",
			Buttons: []Button{
				{ID: "connect_agent", Title: "Connect to Agent"},
				{ID: "social_menu", Title: "Follow Us 📸"},
				backToMain,
			},
		},
		SocialMenu: Screen{
			Text: "📸 Follow KAAPAV for new arrivals and offers",
			Body: "Choose a channel:",
			Buttons: []Button{
				{ID: "open_instagram", Title: "Instagram"},
				{ID: "open_facebook", Title: "Facebook"},
				backToMain,
			},
		},
		WebsiteCTA: Screen{
			Text:    "Open KAAPAV website:\n{website}",
			Body:    "Happy shopping ✨",
			Buttons: []Button{backToMain},
		},
		CatalogCTA: Screen{
			Text:    "Open our WhatsApp Catalog:\n{whatsappCatalog}",
			Body:    "Continue",
			Buttons: []Button{backToMain},
		},
		ShopNowCTA: Screen{
			Text: "🛒 Shop the bestsellers:\n{offersBestsellers}",
			Body: "Continue",
			Buttons: []Button{
				{ID: "back_offers_menu", Title: "Back to Offers ⬅️"},
				backToMain,
			},
		},
		PayUPICTA: Screen{
			Text:    "💳 Pay via UPI:\n{upi}",
			Body:    "Continue",
			Buttons: []Button{{ID: "payment_orders", Title: "Pay & Orders 💳"}, backToMain},
		},
		PayCardCTA: Screen{
			Text:    "💳 Pay by Card / Netbanking:\n{card}",
			Body:    "Continue",
			Buttons: []Button{{ID: "payment_orders", Title: "Pay & Orders 💳"}, backToMain},
		},
		PayNowCTA: Screen{
			Text:    "Proceed to secure payment:\n{razorpay}",
			Body:    "Secure payment",
			Buttons: []Button{{ID: "payment_orders", Title: "Pay & Orders 💳"}, backToMain},
		},
		TrackOrderCTA: Screen{
			Text:    "📦 Track your order:\n{shiprocket}",
			Body:    "Continue",
			Buttons: []Button{backToMain},
		},
		ConnectAgent: Screen{
			Text: "Thanks, an agent will assist you. Please share your order number or query so we can help faster.",
		},
		FacebookCTA: Screen{
			Text:    "Find us on Facebook:\n{facebook}",
			Body:    "Continue",
			Buttons: []Button{{ID: "social_menu", Title: "Follow Us 📸"}, backToMain},
		},
		InstagramCTA: Screen{
			Text:    "Follow us on Instagram:\n{instagram}",
			Body:    "Continue",
			Buttons: []Button{{ID: "social_menu", Title: "Follow Us 📸"}, backToMain},
		},
		MediaAck: Screen{
			Text: "Thanks, we received your message. Reply \"menu\" to see options.",
		},
		Fallback: Screen{
			Text: "Sorry, something went wrong. Type *menu* to see options.",
		},
	}
}

var hindiBack = Button{ID: "back_main_menu", Title: "मुख्य मेनू ⬅️"}

func hindiScreens() *Screens {
	return &Screens{
		MainMenu: Screen{
			Text: "🎉 KAAPAV फैशन ज्वेलरी में आपका स्वागत है! 👋",
			Body: "हम आपकी कैसे मदद कर सकते हैं? शुरू करने के लिए नीचे विकल्प चुनें:",
			Buttons: []Button{
				{ID: "jewellery_categories", Title: "गहने देखें 💎"},
				{ID: "chat_with_us", Title: "हमसे बात करें 💬"},
				{ID: "offers_more", Title: "ऑफर 🎉 व अधिक"},
			},
		},
		JewelleryMenu: Screen{
			Text: "💎 हमारे ज्वेलरी कलेक्शन को देखें\n\n• वेबसाइट: {website}\n• WhatsApp कैटलॉग: {whatsappCatalog}",
			Body: "गहने, विकल्प चुनें:",
			Buttons: []Button{
				{ID: "open_website_browse", Title: "गहने देखें 💎"},
				{ID: "open_wa_catalog", Title: "WA कैटलॉग"},
				hindiBack,
			},
		},
		OffersMenu: Screen{
			Body: "वर्तमान ऑफर 🎉 व ऑर्डर, चुनें:",
			Buttons: []Button{
				{ID: "current_offers", Title: "ऑफर 🎉 व अधिक"},
				{ID: "payment_orders", Title: "भुगतान व ऑर्डर 💳"},
				hindiBack,
			},
		},
		CurrentOffers: Screen{
			Text: "✨ सभी ज्वेलरी पर 50% छूट\n🚚 ₹499 से अधिक पर फ्री शिपिंग\n🛍️ बेस्टसेलर्स: {offersBestsellers}",
			Body: "ऑफर, क्रिया:",
			Buttons: []Button{
				{ID: "shop_now", Title: "अभी खरीदें 🛒"},
				{ID: "back_offers_menu", Title: "वापस ऑफर ⬅️"},
				hindiBack,
			},
		},
		PaymentMenu: Screen{
			Text: "💳 भुगतान करें",
			Body: "भुगतान व ऑर्डर, चुनें:",
			Buttons: []Button{
				{ID: "pay_via_upi", Title: "UPI से भुगतान"},
				{ID: "pay_via_card", Title: "कार्ड से भुगतान"},
				{ID: "track_order", Title: "ऑर्डर ट्रैक 📦"},
			},
		},
		ChatMenu: Screen{
			Text: "💬 हमसे चैट करें:",
			Body: "और मदद चाहिए?",
			Buttons: []Button{
				{ID: "connect_agent", Title: "एजेंट से जुड़ें"},
				{ID: "social_menu", Title: "हमें फॉलो करें 📸"},
				hindiBack,
			},
		},
		WebsiteCTA: Screen{
			Text:    "KAAPAV वेबसाइट खोलें:\n{website}",
			Body:    "जारी रखें",
			Buttons: []Button{hindiBack},
		},
		CatalogCTA: Screen{
			Text:    "हमारा WhatsApp कैटलॉग:\n{whatsappCatalog}",
			Body:    "जारी रखें",
			Buttons: []Button{hindiBack},
		},
		PayNowCTA: Screen{
			Text:    "सुरक्षित भुगतान करें:\n{razorpay}",
			Body:    "जारी रखें",
			Buttons: []Button{hindiBack},
		},
		TrackOrderCTA: Screen{
			Text:    "📦 ऑर्डर ट्रैक करें:\n{shiprocket}",
			Body:    "जारी रखें",
			Buttons: []Button{hindiBack},
		},
		ConnectAgent: Screen{
			Text: "धन्यवाद, एजेंट आपकी मदद करेगा। कृपया अपना ऑर्डर नंबर/प्रश्न साझा करें ताकि हम जल्दी सहायता कर सकें।",
		},
		MediaAck: Screen{
			Text: "धन्यवाद, हमें आपका संदेश मिल गया। विकल्प देखने के लिए \"menu\" लिखें।",
		},
		Fallback: Screen{
			Text: "क्षमा करें, कुछ गलत हो गया। विकल्प देखने के लिए *menu* लिखें।",
		},
	}
}

// DefaultLinks are the production deep links.
func DefaultLinks() Links {
	return Links{
		Website:           "https://www.kaapav.com",
		WhatsAppCatalog:   "https://wa.me/c/919148330016",
		OffersBestsellers: "https://www.kaapav.com/shop/category/all-jewellery-12?category=12&search=&order=&tags=16",
		UPI:               "upi://pay?pa=your-upi@upi&pn=KAAPAV",
		Card:              "https://kaapav.com/pay/card",
		Razorpay:          "https://kaapav.com/pay/razorpay",
		Shiprocket:        "https://www.shiprocket.in/shipment-tracking/",
		Facebook:          "https://www.facebook.com/kaapav",
		Instagram:         "https://www.instagram.com/kaapav",
	}
}

// Default returns the built-in English and Hindi catalog.
func Default() *Catalog {
	en := englishScreens()
	hi := hindiScreens()
	hi.fillFrom(en)

	c := &Catalog{
		Links: DefaultLinks(),
		Languages: map[string]*Screens{
			"en": en,
			"hi": hi,
		},
	}
	c.expander = c.newExpander()
	return c
}
