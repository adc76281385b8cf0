package predictor

import "fmt"

const systemPrompt = `You are a literary-level predictive writing assistant trained to help professional novelists.

You analyze narrative flow, pacing, emotional tone, and genre conventions before predicting the next words.`

func userPrompt(genre, recent string) string {
	return fmt.Sprintf(`Genre: %q

Recent Context:
%q

Return:
- 5 highly probable next words
- 3 creative alternative words

Respond with JSON: {"probable": [5 words], "creative": [3 words]}.
Single lowercase words only, no punctuation, no explanation.`, genre, recent)
}
