package classifier

// prompt is sent alongside every image. The JSON shape it requests is what
// parseJSON expects.
const prompt = `Analyze this image and identify if there's a real-life, existing creature (animal, bird, insect, etc.) present.
If there is a creature, provide detailed information about it.

Focus on wildlife, domestic animals, birds, insects, marine life, and other creatures.
Be very specific about the type of creature (e.g., "Red Cardinal" not just "Bird").

For the rarity assessment, consider:
- "Commonly found in the area" - frequently seen in typical habitats
- "Rarely found in the area" - occasionally seen, special sightings
- "Not supposed to be found in the area" - unusual or unexpected for the location

Respond in this EXACT JSON format:
{
  "isAnimal": true/false,
  "name": "Common name of the creature",
  "species": "Scientific name if identifiable",
  "creatureType": "Type of creature (e.g., Bird, Mammal, Insect, Reptile, etc.)",
  "keyCharacteristics": "2-3 key physical features that make this creature distinct",
  "rarity": "Commonly found in the area" OR "Rarely found in the area" OR "Not supposed to be found in the area",
  "description": "Brief description of the creature",
  "confidence": 85
}

If no creature is detected, respond with:
{
  "isAnimal": false,
  "name": "No creature detected",
  "creatureType": "None",
  "keyCharacteristics": "None",
  "rarity": "None",
  "description": "No creature found in image",
  "confidence": 0
}`
