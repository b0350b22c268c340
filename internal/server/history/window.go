package history

import "github.com/svieira1985/gpt-webassist-sam/internal/shared/models"

// DefaultSize is the number of trailing messages sent to the generator.
const DefaultSize = 10

// Window returns the last size messages in their original order. A
// non-positive size falls back to DefaultSize. The result never aliases msgs.
func Window(msgs []models.Message, size int) []models.Message {
	if size <= 0 {
		size = DefaultSize
	}
	start := 0
	if len(msgs) > size {
		start = len(msgs) - size
	}
	return append([]models.Message{}, msgs[start:]...)
}
