package textgan_go

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config Settings of DiscriminatorNet
//
// EmbeddingDim - size of embedding space D. Must be even and divisible by NumHeads
// MaxSeqLen - maximum sequence length T. Highway layer takes exactly T*D features
// VocabSize - size of vocabulary V, i.e. width of each input distribution
// PaddingIdx - index of padding token. Reserved: it doesn't take part in computations. Negative means no padding token
// GPU - require visible CUDA device. It is only checked: graph execution goes to CUDA when the module is built with 'cuda' tag, not by this flag
// Dropout - declared for compatibility, never applied
// Init - parameters initialization scheme
// Seed - seed for source of randomness used by Init
//
type Config struct {
	EmbeddingDim int
	MaxSeqLen    int
	VocabSize    int
	PaddingIdx   int
	GPU          bool
	Dropout      float64
	Init         InitScheme
	Seed         uint64

	NumHeads       int
	NumLayers      int
	FeedForwardDim int
	FeatureDim     int
	LayerNormEps   float64
}

// DefaultConfig Returns config with fixed topology: 3 encoder layers of 4 heads, 2048 hidden units in feedforward part, 100 features in scoring head
func DefaultConfig(embeddingDim, maxSeqLen, vocabSize, paddingIdx int) Config {
	return Config{
		EmbeddingDim:   embeddingDim,
		MaxSeqLen:      maxSeqLen,
		VocabSize:      vocabSize,
		PaddingIdx:     paddingIdx,
		Dropout:        0.25,
		Init:           InitUniform,
		Seed:           1337,
		NumHeads:       4,
		NumLayers:      3,
		FeedForwardDim: 2048,
		FeatureDim:     100,
		LayerNormEps:   1e-5,
	}
}

// Validate Checks config before any allocation happens
func (cfg Config) Validate() error {
	if cfg.EmbeddingDim < 2 {
		return errors.Wrap(ErrShapeMismatch, fmt.Sprintf("embedding dimension must be at least 2, but got %d", cfg.EmbeddingDim))
	}
	if cfg.EmbeddingDim%2 != 0 {
		return errors.Wrap(ErrOddEmbeddingDim, fmt.Sprintf("got %d", cfg.EmbeddingDim))
	}
	if cfg.NumHeads < 1 || cfg.EmbeddingDim%cfg.NumHeads != 0 {
		return errors.Wrap(ErrShapeMismatch, fmt.Sprintf("embedding dimension %d is not divisible by %d heads", cfg.EmbeddingDim, cfg.NumHeads))
	}
	if cfg.MaxSeqLen < 1 {
		return fmt.Errorf("Max sequence length must be positive, but got %d", cfg.MaxSeqLen)
	}
	if cfg.VocabSize < 1 {
		return fmt.Errorf("Vocabulary size must be positive, but got %d", cfg.VocabSize)
	}
	if cfg.PaddingIdx >= cfg.VocabSize {
		return fmt.Errorf("Padding index %d is out of vocabulary of size %d", cfg.PaddingIdx, cfg.VocabSize)
	}
	if cfg.NumLayers < 1 {
		return fmt.Errorf("Number of encoder layers must be positive, but got %d", cfg.NumLayers)
	}
	if cfg.FeedForwardDim < 1 {
		return fmt.Errorf("Feedforward dimension must be positive, but got %d", cfg.FeedForwardDim)
	}
	if cfg.FeatureDim < 1 {
		return fmt.Errorf("Feature dimension must be positive, but got %d", cfg.FeatureDim)
	}
	if cfg.LayerNormEps <= 0 {
		return fmt.Errorf("Layer normalization epsilon must be positive, but got %v", cfg.LayerNormEps)
	}
	if !cfg.Init.Valid() {
		return errors.Wrap(ErrUnknownInitScheme, cfg.Init.String())
	}
	return nil
}

// DiscriminatorNet Transformer-based discriminator for sequences of vocabulary distributions.
//
// embedding - (V -> D) projection without bias
// positional - fixed (T x D) sinusoidal table, not learnable
// encoder - self-attention encoder stack
// head - flatten -> highway (T*D -> D, ReLU) -> features (D -> 100, ReLU) -> logits (100 -> 1, Sigmoid)
// out - (batch x 1) node of logits in (0, 1)
//
type DiscriminatorNet struct {
	cfg             Config
	device          Device
	embedding       *Layer
	positionalTable *tensor.Dense
	positional      *gorgonia.Node
	encoder         SequenceEncoder
	head            *Network
	out             *gorgonia.Node
}

// DiscriminatorOption Optional settings for NewDiscriminator
type DiscriminatorOption func(*DiscriminatorNet)

// WithEncoder Replaces default transformer encoder. Encoder's nodes must belong to the same graph
func WithEncoder(enc SequenceEncoder) DiscriminatorOption {
	return func(net *DiscriminatorNet) {
		net.encoder = enc
	}
}

// NewDiscriminator Constructor for DiscriminatorNet. Every parameter is created in graph g and initialized by cfg.Init
func NewDiscriminator(g *gorgonia.ExprGraph, cfg Config, opts ...DiscriminatorOption) (*DiscriminatorNet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Bad config")
	}
	device, err := resolveDevice(cfg.GPU)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	net := &DiscriminatorNet{
		cfg:    cfg,
		device: device,
	}
	for _, opt := range opts {
		opt(net)
	}

	pf := newParamFactory(g, cfg)
	net.embedding, err = pf.linear("discriminator_embedding", cfg.VocabSize, cfg.EmbeddingDim, false, NoActivation)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't create embedding")
	}
	if net.encoder == nil {
		net.encoder, err = newTransformerEncoder(pf, cfg)
		if err != nil {
			return nil, errors.Wrap(err, "[Discriminator] Can't create encoder")
		}
	}
	highway, err := pf.linear("discriminator_highway", cfg.EmbeddingDim*cfg.MaxSeqLen, cfg.EmbeddingDim, true, Rectify)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't create highway")
	}
	features, err := pf.linear("discriminator_feature2out", cfg.EmbeddingDim, cfg.FeatureDim, true, Rectify)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't create feature layer")
	}
	logits, err := pf.linear("discriminator_out2logits", cfg.FeatureDim, 1, true, Sigmoid)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't create logits layer")
	}
	net.head = &Network{
		Name:   "discriminator_head",
		Layers: []*Layer{{Type: LayerFlatten}, highway, features, logits},
	}

	net.positionalTable, err = PositionalEncoding(cfg.MaxSeqLen, cfg.EmbeddingDim)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't prepare positional encoding")
	}
	net.positional = gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(cfg.MaxSeqLen, cfg.EmbeddingDim), gorgonia.WithName("discriminator_positional"), gorgonia.WithValue(net.positionalTable))
	return net, nil
}

// Config Returns config which discriminator has been created with
func (net *DiscriminatorNet) Config() Config {
	return net.cfg
}

// Device Returns device resolved for discriminator
func (net *DiscriminatorNet) Device() Device {
	return net.device
}

// PositionalTable Returns fixed positional encoding table. It must not be modified
func (net *DiscriminatorNet) PositionalTable() *tensor.Dense {
	return net.positionalTable
}

// Out Returns reference to (batch x 1) output node. It is safe to Read under Grad
func (net *DiscriminatorNet) Out() *gorgonia.Node {
	return net.out
}

// Learnables Returns learnables nodes: embedding, encoder and scoring head. Positional table is not included
func (net *DiscriminatorNet) Learnables() gorgonia.Nodes {
	nodes := learnables(net.embedding)
	nodes = append(nodes, net.encoder.Learnables()...)
	return append(nodes, net.head.Learnables()...)
}

// Fwd Initializates feedforward for provided input
//
// input - (batch x seqLen x vocab) node of vocabulary distributions.
// seqLen must not exceed MaxSeqLen and, since highway layer has fixed width, should be equal to it
//
func (net *DiscriminatorNet) Fwd(input *gorgonia.Node) error {
	if input.Dims() != 3 {
		return errors.Wrap(ErrShapeMismatch, fmt.Sprintf("[Discriminator] input must be (batch, seq_len, vocab), but got %v", input.Shape()))
	}
	shp := input.Shape()
	batchSize, seqLen, vocab := shp[0], shp[1], shp[2]
	if vocab != net.cfg.VocabSize {
		return errors.Wrap(ErrVocabMismatch, fmt.Sprintf("[Discriminator] got %d, expected %d", vocab, net.cfg.VocabSize))
	}
	if seqLen > net.cfg.MaxSeqLen {
		return errors.Wrap(ErrSequenceTooLong, fmt.Sprintf("[Discriminator] got %d, max is %d", seqLen, net.cfg.MaxSeqLen))
	}
	if batchSize < 1 || seqLen < 1 {
		return errors.Wrap(ErrShapeMismatch, fmt.Sprintf("[Discriminator] empty input %v", shp))
	}
	dim := net.cfg.EmbeddingDim
	rows := batchSize * seqLen

	flat, err := gorgonia.Reshape(input, tensor.Shape{rows, vocab})
	if err != nil {
		return errors.Wrap(err, "[Discriminator] Can't flatten input")
	}
	emb, err := net.embedding.Fwd(flat, rows)
	if err != nil {
		return errors.Wrap(err, "[Discriminator] Can't embed input")
	}
	gorgonia.WithName("discriminator_embedded")(emb)

	// Positional table is broadcasted over batch as (1 x seqLen*D) row
	emb, err = gorgonia.Reshape(emb, tensor.Shape{batchSize, seqLen * dim})
	if err != nil {
		return errors.Wrap(err, "[Discriminator] Can't reshape embeddings")
	}
	positional := net.positional
	if seqLen < net.cfg.MaxSeqLen {
		positional, err = gorgonia.Slice(positional, gorgonia.S(0, seqLen))
		if err != nil {
			return errors.Wrap(err, "[Discriminator] Can't slice positional encoding")
		}
	}
	withPositions, err := addBias(emb, positional, batchSize)
	if err != nil {
		return errors.Wrap(err, "[Discriminator] Can't add positional encoding")
	}
	encoderInput, err := gorgonia.Reshape(withPositions, tensor.Shape{batchSize, seqLen, dim})
	if err != nil {
		return errors.Wrap(err, "[Discriminator] Can't reshape encoder input")
	}

	encoded, err := net.encoder.Fwd(encoderInput)
	if err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	if err := net.head.Fwd(encoded, batchSize); err != nil {
		return errors.Wrap(err, "[Discriminator]")
	}
	// Sigmoid node itself: a reshaped view of it shares value with node which backward pass overwrites
	net.out = net.head.Out()
	gorgonia.WithName("discriminator_logits")(net.out)
	return nil
}
