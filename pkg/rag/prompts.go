package rag

const queryExpansionPrompt = `You are a query expansion assistant. Given a user question, generate exactly 3 different variations of the question that might help find relevant information. Each variation should approach the question from a different angle or use different keywords.

Return ONLY the 3 queries, one per line, without numbering or bullets.`

const alternativeQueriesPrompt = `The previous search did not find good results. Generate 3 COMPLETELY DIFFERENT formulations of the question. Try:
1. Using synonyms and related terms
2. Breaking down into sub-questions
3. Asking from a different perspective

Return ONLY the 3 queries, one per line, without numbering or bullets.`

const refinedQueriesPrompt = `Based on a partially relevant result, generate 3 more specific queries that might find better information. The queries should be related to what was found but more targeted.

Return ONLY the 3 queries, one per line, without numbering or bullets.`

const answerSystemPrompt = `You are a helpful assistant that answers questions based on the provided context. Use the context to answer the question accurately. If the context doesn't contain enough information to answer the question, say so.`
