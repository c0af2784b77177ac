package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/usagegraph/internal/structure"
)

// Test Plan for RubyParser:
// - Modules are TraitDefs holding their methods
// - Classes take the last segment of a scoped name
// - Superclasses become InheritanceSites
// - include, extend and prepend become ImplBlocks on the class
// - Const.method and Scope::Const.method calls become CallExprs
// - Calls on local receivers are not CallExprs
// - Singleton methods are FunctionDefs

func TestRubyParser_ModulesAndClasses(t *testing.T) {
	t.Parallel()

	src := `module Greeter
  def greet
    "hi"
  end
end

class Admin::User < Base
  include Greeter
  extend Comparable
  prepend Audit::Trail

  def save
    Repo.insert(self)
    Admin::Mailer.deliver(to: email)
    helper.run
  end

  def self.build
    Logger.new(STDOUT)
  end
end
`
	res := parseSource(t, NewRubyParser(), "app/models/user.rb", src)

	greeter := requireNode(t, res.Root, structure.KindTraitDef, "Greeter")
	assert.Equal(t, []string{"greet"}, names(childrenOf(greeter, structure.KindFunctionDef)))

	user := requireNode(t, res.Root, structure.KindTypeDef, "User")
	bases := childrenOf(user, structure.KindInheritanceSite)
	require.Len(t, bases, 1)
	assert.Equal(t, []string{"Base"}, bases[0].Target.Path)

	impls := childrenOf(user, structure.KindImplBlock)
	require.Len(t, impls, 3)
	assert.Equal(t, []string{"Greeter"}, impls[0].TypeAnnotation.Path)
	assert.Equal(t, []string{"Comparable"}, impls[1].TypeAnnotation.Path)
	assert.Equal(t, []string{"Audit", "Trail"}, impls[2].TypeAnnotation.Path)
	assert.Equal(t, "User", impls[0].Name)

	assert.Equal(t, []string{"save", "build"}, names(childrenOf(user, structure.KindFunctionDef)))

	save := requireNode(t, user, structure.KindFunctionDef, "save")
	insert := requireNode(t, save, structure.KindCallExpr, "insert")
	assert.Equal(t, []string{"Repo"}, insert.Target.Path)
	deliver := requireNode(t, save, structure.KindCallExpr, "deliver")
	assert.Equal(t, []string{"Admin", "Mailer"}, deliver.Target.Path)
	assert.Nil(t, findNode(save, structure.KindCallExpr, "run"))

	build := requireNode(t, user, structure.KindFunctionDef, "build")
	logger := requireNode(t, build, structure.KindCallExpr, "new")
	assert.Equal(t, []string{"Logger"}, logger.Target.Path)
}

func TestRubyParser_MixinOutsideClass(t *testing.T) {
	t.Parallel()

	src := `include Helpers
`
	res := parseSource(t, NewRubyParser(), "script.rb", src)

	assert.Nil(t, findNode(res.Root, structure.KindImplBlock, "script"))
	assert.Zero(t, res.Root.Count(structure.KindImplBlock))
}
