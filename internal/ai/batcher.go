package ai

import "context"

// BatchEmbed embeds texts in batches bounded by item count and, optionally,
// cumulative character length. Output order matches input order. A single
// text longer than maxChars is still embedded, alone in its own batch.
func BatchEmbed(ctx context.Context, p IEmbedProvider, model string, texts []string, inputType string, maxCount, maxChars int) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if maxCount <= 0 {
		maxCount = len(texts)
	}

	var batches [][]string
	if maxChars <= 0 {
		for start := 0; start < len(texts); start += maxCount {
			end := start + maxCount
			if end > len(texts) {
				end = len(texts)
			}
			batches = append(batches, texts[start:end])
		}
	} else {
		var current []string
		var currentChars int
		for _, t := range texts {
			if len(current) > 0 && (len(current)+1 > maxCount || currentChars+len(t) > maxChars) {
				batches = append(batches, current)
				current = nil
				currentChars = 0
			}
			current = append(current, t)
			currentChars += len(t)
		}
		if len(current) > 0 {
			batches = append(batches, current)
		}
	}

	vectors := make([][]float32, 0, len(texts))
	for _, batch := range batches {
		res, err := p.Embed(ctx, model, batch, inputType)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, res...)
	}
	return vectors, nil
}
