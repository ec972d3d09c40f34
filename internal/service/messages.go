package service

import "fmt"

// Canned lines sent in the persona's voice.
const (
	// MessageUnavailable is sent when the reply cannot be produced.
	MessageUnavailable = "ごめんね、いまちょっと調子が悪いみたい…少し時間をおいてからまた話しかけてね🙏"

	// MessageAskName asks a new user how to address them.
	MessageAskName = "ねぇ、あなたの名前教えてくれない？🥺（短めでね）"
)

// GreetingMessage confirms the name captured during onboarding.
func GreetingMessage(name string) string {
	return fmt.Sprintf("%sって呼べばいいのかな？これからよろしくね💗", name)
}

// WarnMessage tells the user the free characters are running out.
func WarnMessage(remaining int64) string {
	return fmt.Sprintf("そろそろお話しできる文字数がなくなっちゃいそう…あと%d文字くらいだよ🥺", remaining)
}

// ExhaustedMessage carries the checkout link sent once the quota is used up.
func ExhaustedMessage(shortURL string) string {
	return fmt.Sprintf("ごめんね、お話しできる文字数を使い切っちゃったみたい🥺\nチケットを買ってくれたら、またいっぱいお話しできるよ💗\n%s", shortURL)
}
