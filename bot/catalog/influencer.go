package catalog

import "fmt"

// KeyCommunitySize is read by tier resolution after approval.
const KeyCommunitySize = "community_size"

// KeyEmail is the billing email collected by both catalogs.
const KeyEmail = "email_address"

// KeyFullName feeds the name confirmation prompts.
const KeyFullName = "full_name"

// Influencer builds the WhatsApp influencer questionnaire.
func Influencer() *Catalog {
	return &Catalog{
		Role: RoleInfluencer,
		Questions: []Question{
			{
				Key:  "agreement",
				Kind: KindConfirmation,
				Prompt: "Instructions: Endeavor every information you provide is absolutely correct. " +
					"False information can get your brand de-listed from the website without prior notice.\n\n" +
					"Do you agree to provide nothing but the true answers to any question we ask you?",
				Buttons: []Button{{Label: "YES I AGREE", Value: ConfirmYes}},
			},
			{
				Key:    KeyFullName,
				Kind:   KindText,
				Prompt: "Kindly provide us your full name!\n\nNote : must be your real names",
			},
			{
				Key:  "name_confirmation",
				Kind: KindConfirmation,
				PromptFn: func(a Answers) string {
					return fmt.Sprintf("So your full name is %s. Is that correct?", a.Text(KeyFullName))
				},
				Uses: []string{KeyFullName},
				Buttons: []Button{
					{Label: "YES, IT IS CORRECT", Value: ConfirmYes},
					{Label: "NO PLEASE I MADE A MISTAKE", Value: ConfirmNo},
				},
			},
			{
				Key:    "community_name",
				Kind:   KindText,
				Prompt: "What is the name of your WhatsApp Community?",
			},
			{
				Key:    "cac_certificate",
				Kind:   KindConfirmation,
				Prompt: "Does your WhatsApp Community brand have a CAC Certificate? (Proof will be requested)",
				Buttons: []Button{
					{Label: "YES", Value: ConfirmYes},
					{Label: "NO", Value: ConfirmNo},
				},
				Disqualify: true,
				DisqualifyText: "We regret to break this to you. You did not meet up with our requirements!\n\n" +
					"Our Top business owners only wish to work with Professional WhatsApp Influencers with a CAC Certificate.\n\n" +
					"You don't have a CAC agency? Don't worry, use the button below to connect with a CAC agent to get your Certification done.",
				LinkLabel: "Contact a CAC Agent",
			},
			{
				Key:  "cac_proof",
				Kind: KindPhoto,
				Prompt: "Kindly upload a (photo) of your WhatsApp Community CAC Certificate.\n\n" +
					"Ensure the BN/RC number is clear and visible.",
			},
			{
				Key:      "brand_logo",
				Kind:     KindPhoto,
				Prompt:   "Send your WhatsApp Community brand logo (You can also add multiple flyers to it)",
				Multiple: true,
			},
			{
				Key:    KeyCommunitySize,
				Kind:   KindText,
				Prompt: "What is the exact contact size of your WhatsApp Community? (Proof will be requested)",
			},
			{
				Key:  "video_proof",
				Kind: KindVideo,
				Prompt: "Kindly provide a (video) proof of your current WhatsApp contacts.\n\n" +
					"⚠️NOTE : While recording the video, make use of another device camera for this recording. " +
					"The recording should start from your profile picture before you move to your contact list. " +
					"Screen records are not allowed. 🚫",
			},
			{
				Key:    "corporate_account",
				Kind:   KindConfirmation,
				Prompt: "Where does the company accept payment?",
				Buttons: []Button{
					{Label: "Corporate Bank account", Value: ConfirmYes},
					{Label: "Personal Bank account", Value: ConfirmYes},
				},
			},
			{
				Key:    "country_of_operation",
				Kind:   KindText,
				Prompt: "What country is your WhatsApp Community operating from?",
			},
			{
				Key:    KeyEmail,
				Kind:   KindText,
				Prompt: "Provide your best email address. (That is where we will send your receipt)",
			},
			{
				Key:  "final_message",
				Kind: KindFinal,
				Prompt: "Thank you for providing us these information. Your responses have been forwarded to our human support team for review.\n\n" +
					"Verification takes less than 24 hours. While you await in the queue..\n\n" +
					"You can use the button below to learn some sales closing hack that can benefit you in wrecking in more sales " +
					"if peradventure you get listed on our platform.",
				LinkLabel: "LEARN HOW TO CLOSE BIG DEALS",
				LinkURL:   "https://dailyinfluencing.com/how-to-get-better-in-sales-and-close-big-deals",
			},
		},
	}
}
