// Package phytodex provides a Go client for the phytodex plant disease
// assistant API.
//
//	c, _ := phytodex.New("http://localhost:8080", phytodex.WithAPIKey("secret"))
//
//	f, _ := os.Open("leaf.jpg")
//	pred, _ := c.Predict(ctx, f, "leaf.jpg")
//	fmt.Println(pred.Disease, pred.Recommendation)
//
//	ans, _ := c.Chat(ctx, phytodex.ChatRequest{
//	    Question: "How do I treat late blight?",
//	    Crop:     "potato",
//	})
//	fmt.Println(ans.Answer)
package phytodex
