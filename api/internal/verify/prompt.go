package verify

import (
	"fmt"

	"coupon-market/api/internal/coupon"
)

// Prompt is the instruction sent to verdict backends. The rules mirror
// coupon.Match so a one-step extraction+match gives the same decision.
func Prompt(expectedCode string) string {
	return fmt.Sprintf(`Analyze this image:
1. Extract all text from this coupon screenshot.
2. I am looking for the specific code: %[1]q.
3. Compare after removing all whitespace and converting to upper case.
4. If the expected code is exactly %[2]q, look for the literal visible text %[2]q in the image. Set "found": true only if it is printed on the screen.
5. Otherwise set "found": true if the full code appears in the image.
6. IMPORTANT: Many apps (like Ajio, Swiggy, etc.) hide the full code and show a truncated version ending in "..." (e.g., "INSEG3QNGKQD..."). If the code is longer than 4 characters and the image contains its first max(4, floor(0.6 * length)) characters, you MUST consider it found and set "found": true.
7. Respond ONLY with a valid JSON object in this format (no markdown tags):
{
    "found": boolean,
    "extractedText": "string",
    "confidence": "high" | "medium" | "low"
}`, expectedCode, coupon.NoCode)
}
