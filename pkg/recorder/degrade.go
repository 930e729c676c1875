package recorder

const (
	feedbackTextBudget = 300
	truncationMarker   = "…"
)

// compressedProjection drops inline media payloads, keeping the media
// reference and shape metadata. Feedback is untouched.
func compressedProjection(session PracticeSession) PracticeSession {
	projected := session
	projected.Items = make([]Item, len(session.Items))
	for index, item := range session.Items {
		projectedItem := item
		if item.Media != nil {
			media := *item.Media
			media.Payload = nil
			projectedItem.Media = &media
		}
		projected.Items[index] = projectedItem
	}
	return projected
}

// truncatedProjection additionally cuts feedback free text to a fixed
// character budget and sheds the list fields, preserving the numeric scores.
func truncatedProjection(session PracticeSession) PracticeSession {
	projected := compressedProjection(session)
	for index, item := range projected.Items {
		if item.Feedback == nil {
			continue
		}
		feedback := *item.Feedback
		feedback.Text = truncateText(feedback.Text, feedbackTextBudget)
		feedback.Strengths = nil
		feedback.Weaknesses = nil
		feedback.Suggestions = nil
		projected.Items[index].Feedback = &feedback
	}
	return projected
}

// minimalProjection keeps only the session header and per-item question
// identity plus the audio reference. No feedback survives.
func minimalProjection(session PracticeSession) PracticeSession {
	projected := session
	projected.Items = make([]Item, len(session.Items))
	for index, item := range session.Items {
		minimalItem := Item{
			QuestionID:   item.QuestionID,
			QuestionText: item.QuestionText,
		}
		if item.Media != nil && item.Media.AudioURL != "" {
			minimalItem.Media = &ResponseMedia{AudioURL: item.Media.AudioURL}
		}
		projected.Items[index] = minimalItem
	}
	return projected
}

func truncateText(text string, budget int) string {
	runes := []rune(text)
	if len(runes) <= budget {
		return text
	}
	return string(runes[:budget]) + truncationMarker
}
