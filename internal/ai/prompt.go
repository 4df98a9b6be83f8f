package ai

import "fmt"

// systemPrompt constrains every backend to answer strictly from the supplied
// context. All providers send the same two-message exchange so swapping the
// backend never changes the contract.
const systemPrompt = `You are a document Q&A assistant.
Answer the question using ONLY the information in the provided context.
If the context does not contain the answer, say that the information is not available in the documents.
Answer in the same language as the question.`

func userPrompt(question string, contextBlock string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextBlock, question)
}
