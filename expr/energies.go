package expr

// Energy factories. Each one only assembles primitive nodes; parameters are
// typed structs baked in as literals.

// SurfaceParams configures the isotropic gradient energy κ/2 |∇c|²
type SurfaceParams struct {
	Kappa float64
}

// AnisotropyParams configures a cubic anisotropic gradient energy
// κ/2 γ(n)² |∇c|² with γ(n) = 1 + ε Σ nᵢ⁴ and n = ∇c/|∇c|
type AnisotropyParams struct {
	Kappa   float64
	Epsilon float64
}

// CahnHilliardParams configures B W(c) + κ/2 |∇c|²
type CahnHilliardParams struct {
	Kappa   float64
	Barrier float64
}

// FourthOrderParams configures λ/2 (Δc)² + κ/2 |∇c|²
type FourthOrderParams struct {
	Kappa  float64
	Lambda float64
}

// ElasticParams holds the Lamé constants
type ElasticParams struct {
	Lambda float64
	Mu     float64
}

// Strain is the small-strain tensor sym(∇u)
func (b *Builder) Strain(u *Node) *Node {
	return b.Unary(OpSym, b.Grad(u))
}

// DeformationGradient is F = I + ∇u
func (b *Builder) DeformationGradient(u *Node) *Node {
	return b.Add(b.Identity(), b.Grad(u))
}

// DoubleWell is the opaque potential W(c) = (c²-1)²
func (b *Builder) DoubleWell(c *Node) *Node {
	return b.Call("W", c)
}

func (b *Builder) gradientSquared(c *Node) *Node {
	g := b.Grad(c)
	return b.Dot(g, g)
}

func (b *Builder) IsotropicSurface(c *Node, p SurfaceParams) *Node {
	return b.Scale(0.5*p.Kappa, b.gradientSquared(c))
}

func (b *Builder) AnisotropicSurface(c *Node, p AnisotropyParams) *Node {
	n := b.Unary(OpNormalize, b.Grad(c))
	terms := make([]*Node, 0, b.arena.Dim())
	for i := 0; i < b.arena.Dim(); i++ {
		terms = append(terms, b.PowReal(b.Component(n, i), 4))
	}
	gamma := b.Add(b.Real(1), b.Scale(p.Epsilon, b.Sum(terms...)))
	return b.Scale(0.5*p.Kappa, b.Mul(b.PowReal(gamma, 2), b.gradientSquared(c)))
}

func (b *Builder) CahnHilliard(c *Node, p CahnHilliardParams) *Node {
	bulk := b.Scale(p.Barrier, b.DoubleWell(c))
	return b.Add(bulk, b.IsotropicSurface(c, SurfaceParams{Kappa: p.Kappa}))
}

func (b *Builder) FourthOrder(c *Node, p FourthOrderParams) *Node {
	curvature := b.Scale(0.5*p.Lambda, b.PowReal(b.Laplacian(c), 2))
	return b.Add(curvature, b.IsotropicSurface(c, SurfaceParams{Kappa: p.Kappa}))
}

// LinearElastic is λ/2 tr(ε)² + μ ε:ε
func (b *Builder) LinearElastic(u *Node, p ElasticParams) *Node {
	eps := b.Strain(u)
	volumetric := b.Scale(0.5*p.Lambda, b.PowReal(b.Unary(OpTrace, eps), 2))
	shear := b.Scale(p.Mu, b.Contract(eps, eps))
	return b.Add(volumetric, shear)
}

// NeoHookean is μ/2 (tr(FᵀF) - d) - μ ln J + λ/2 (ln J)²
func (b *Builder) NeoHookean(u *Node, p ElasticParams) *Node {
	F := b.DeformationGradient(u)
	C := b.Mul(b.Unary(OpTranspose, F), F)
	lnJ := b.Call("log", b.Unary(OpDet, F))
	stretch := b.Sub(b.Unary(OpTrace, C), b.Real(float64(b.arena.Dim())))
	return b.Sum(
		b.Scale(0.5*p.Mu, stretch),
		b.Neg(b.Scale(p.Mu, lnJ)),
		b.Scale(0.5*p.Lambda, b.PowReal(lnJ, 2)),
	)
}
