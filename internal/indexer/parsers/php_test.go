package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Test Plan for PhpParser:
// - use statements bind aliases, including group uses and "as" clauses
// - Interfaces and traits are TraitDefs
// - extends becomes an InheritanceSite; implements and trait use become ImplBlocks
// - Typed and nullable properties keep their class type; untyped ones have none
// - Promoted constructor parameters become fields of the class
// - new expressions and Type::method calls become CallExprs; self:: targets Self
// - Braced namespaces open a ModuleDef scope

func TestPhpParser_Uses(t *testing.T) {
	t.Parallel()

	src := `<?php
namespace App\Http;

use App\Contracts\Shape;
use App\Support\Str as S;
use App\Models\{User, Order as O};
`
	res := parseSource(t, NewPhpParser(), "app/Http/Kernel.php", src)

	imports := importsOf(res.Root)
	assert.Equal(t, []string{"App", "Contracts", "Shape"}, imports["Shape"])
	assert.Equal(t, []string{"App", "Support", "Str"}, imports["S"])
	assert.Equal(t, []string{"App", "Models", "User"}, imports["User"])
	assert.Equal(t, []string{"App", "Models", "Order"}, imports["O"])
	assert.Len(t, imports, 4)
}

func TestPhpParser_Classes(t *testing.T) {
	t.Parallel()

	src := `<?php
interface Named {}

trait Loggable {}

class Circle extends Base implements Shape, \Countable {
    use Loggable;

    private float $radius;
    protected ?Point $center = null;
    public $untyped;

    public function __construct(private Repo $repo, int $n) {
        $this->cache = new Cache();
        $p = Point::origin();
        $q = self::make();
        $r = parent::make();
    }
}

function helper(): void {}
`
	res := parseSource(t, NewPhpParser(), "Circle.php", src)

	requireNode(t, res.Root, structure.KindTraitDef, "Named")
	requireNode(t, res.Root, structure.KindTraitDef, "Loggable")
	requireNode(t, res.Root, structure.KindFunctionDef, "helper")

	circle := requireNode(t, res.Root, structure.KindTypeDef, "Circle")
	assert.Equal(t, []string{"Base"}, names(childrenOf(circle, structure.KindInheritanceSite)))

	impls := childrenOf(circle, structure.KindImplBlock)
	require.Len(t, impls, 3)
	assert.Equal(t, []string{"Shape"}, impls[0].TypeAnnotation.Path)
	assert.Equal(t, []string{"Countable"}, impls[1].TypeAnnotation.Path)
	assert.Equal(t, []string{"Loggable"}, impls[2].TypeAnnotation.Path)

	fields := childrenOf(circle, structure.KindFieldDecl)
	assert.Equal(t, []string{"radius", "center", "untyped", "repo"}, names(fields))
	assert.True(t, fields[0].TypeAnnotation.Primitive)
	assert.Equal(t, "Point", fields[1].TypeAnnotation.Name())
	assert.Nil(t, fields[2].TypeAnnotation)
	assert.Equal(t, "Repo", fields[3].TypeAnnotation.Name())

	ctor := requireNode(t, circle, structure.KindFunctionDef, "__construct")
	cache := requireNode(t, ctor, structure.KindCallExpr, "new")
	assert.Equal(t, "Cache", cache.Target.Name())
	origin := requireNode(t, ctor, structure.KindCallExpr, "origin")
	assert.Equal(t, []string{"Point"}, origin.Target.Path)

	var makes []*structure.Node
	ctor.Walk(func(n *structure.Node) bool {
		if n.Kind == structure.KindCallExpr && n.Name == "make" {
			makes = append(makes, n)
		}
		return true
	})
	require.Len(t, makes, 1, "parent:: calls have no static target")
	assert.Equal(t, []string{"Self"}, makes[0].Target.Path)
}

func TestPhpParser_BracedNamespace(t *testing.T) {
	t.Parallel()

	src := `<?php
namespace App\Geo {
    class Vec2 {}
}
`
	res := parseSource(t, NewPhpParser(), "Geo.php", src)

	mod := requireNode(t, res.Root, structure.KindModuleDef, `App\Geo`)
	assert.NotNil(t, findNode(mod, structure.KindTypeDef, "Vec2"))
}
