package phytodex

import "context"

// Chat answers a question using retrieved passages from the knowledge
// base. TopK and Crop are optional; the server applies its defaults.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (Answer, error) {
	var out Answer
	header, err := c.postJSON(ctx, "/api/v1/chat", req, &out)
	if err != nil {
		return Answer{}, err
	}
	out.TokensUsed = tokensUsed(header)
	return out, nil
}
