package domain

// Modality selects which embedding space a vector query runs against.
type Modality string

const (
	// ModalityText queries description embeddings.
	ModalityText Modality = "text"
	// ModalityImage queries image-description embeddings.
	ModalityImage Modality = "image"
)

// IsValid reports whether the modality is known.
func (m Modality) IsValid() bool {
	return m == ModalityText || m == ModalityImage
}
