package landing

// PageData contains data for the payment landing pages
type PageData struct {
	Title   string
	Body    string
	Persona string
}

// SuccessPageData is shown after Stripe completes a payment.
func SuccessPageData(persona string) PageData {
	return PageData{
		Title:   "お支払いが完了しました",
		Body:    "チケットの反映まで少しだけ時間がかかることがあります。",
		Persona: persona,
	}
}

// CancelPageData is shown when the user leaves checkout without paying.
func CancelPageData(persona string) PageData {
	return PageData{
		Title:   "お支払いはキャンセルされました",
		Body:    "料金は発生していません。",
		Persona: persona,
	}
}
