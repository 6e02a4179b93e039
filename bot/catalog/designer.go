package catalog

import "fmt"

// Designer builds the graphic designer questionnaire.
func Designer() *Catalog {
	return &Catalog{
		Role: RoleDesigner,
		Questions: []Question{
			{
				Key:    KeyFullName,
				Kind:   KindText,
				Prompt: "Okay. Before we proceed..\n\nKindly provide us your full name?",
			},
			{
				Key:  "name_confirmation",
				Kind: KindConfirmation,
				PromptFn: func(a Answers) string {
					return fmt.Sprintf("So your full names are %s\n\nIs that correct?", a.Text(KeyFullName))
				},
				Uses: []string{KeyFullName},
				Buttons: []Button{
					{Label: "YES, IT IS CORRECT", Value: ConfirmYes},
					{Label: "NO PLEASE I MADE A MISTAKE", Value: ConfirmNo},
				},
			},
			{
				Key:    "brand_name",
				Kind:   KindText,
				Prompt: "What is the name of your Graphic Design Brand/Agency?",
			},
			{
				Key:    "design_software",
				Kind:   KindText,
				Prompt: "What software/platform does your brand/agency use for designs?",
			},
			{
				Key:  "design_types",
				Kind: KindText,
				Prompt: "What kind of designs do you make?\n\n- logo design\n- social media design\n- animation\n" +
					"- product design\n- branding\n- illustration\n- typography\n- image editing\n- marketing design",
			},
			{
				Key:  "portfolio_link",
				Kind: KindText,
				Prompt: "Send us a link to your brand/agency's portfolio (It could be either of the following: " +
					"Behance, Instagram, Twitter, Facebook, or any other social platform.)",
			},
			{
				Key:    "country_of_operation",
				Kind:   KindText,
				Prompt: "What country is your brand/agency operating from?",
			},
			{
				Key:    KeyEmail,
				Kind:   KindText,
				Prompt: "Provide your best email address. (That is where we will send your receipt)",
			},
			{
				Key:    "final_message",
				Kind:   KindFinal,
				Prompt: "Thank you for providing your information. Our team will review your application and get back to you soon.",
			},
		},
	}
}
